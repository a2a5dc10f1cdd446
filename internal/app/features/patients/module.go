// Package patients is the deferred patients section. Nothing in it is
// reachable until a signed-in navigation first enters /patients, at which
// point Loader registers its views and publishes its route table.
package patients

import (
	"context"
	"net/http"

	"github.com/dalemusser/topaz/internal/app/features/shell"
	"github.com/dalemusser/topaz/internal/app/system/navigation"
	"go.uber.org/zap"
)

// Module identity as referenced by the root table.
const (
	Ref    navigation.ModuleRef = "patients"
	Export                      = "PatientsModule"
)

// View identifiers.
const (
	ViewList   = "patients.list"
	ViewNew    = "patients.new"
	ViewDetail = "patients.detail"
	ViewEdit   = "patients.edit"
)

// Routes is the table the module publishes under Export. Paths are
// relative to the mount point.
func Routes() *navigation.Table {
	return navigation.MustTable(
		navigation.View("", ViewList),
		navigation.View("new", ViewNew),
		navigation.View(":id", ViewDetail),
		navigation.View(":id/edit", ViewEdit),
	)
}

// Loader returns the module loader. The first successful call binds the
// module's views into views.
func Loader(h *Handler, views *shell.Views) navigation.LoaderFunc {
	return func(ctx context.Context, ref navigation.ModuleRef) (navigation.Bundle, error) {
		if err := ctx.Err(); err != nil {
			return navigation.Bundle{}, err
		}

		for id, fn := range map[string]http.HandlerFunc{
			ViewList:   h.ServeList,
			ViewNew:    h.ServeNew,
			ViewDetail: h.ServeDetail,
			ViewEdit:   h.ServeEdit,
		} {
			views.RegisterFunc(id, fn)
		}

		h.Log.Info("patients module loaded", zap.String("module", string(ref)))
		return navigation.Bundle{
			Ref:     ref,
			Exports: map[string]*navigation.Table{Export: Routes()},
		}, nil
	}
}
