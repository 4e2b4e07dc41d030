package admin

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/curiomarket/curio-backend/api/responses"
	"github.com/curiomarket/curio-backend/internal/exports"
	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

// Export renders a product feed or workbook as a file download. The file is
// buffered so a failure mid-render still produces a JSON error.
func Export(svc exports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "exports service unavailable"))
			return
		}

		name := chi.URLParam(r, "name")
		kind, ok := exports.ParseKind(name)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "export not found").WithDetails(map[string]any{"name": name}))
			return
		}

		var buf bytes.Buffer
		if err := svc.Write(r.Context(), kind, &buf); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("Content-Type", kind.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", string(kind)))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	}
}
