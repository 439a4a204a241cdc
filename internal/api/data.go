package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kalambet/techperks/internal/perk"
)

func handleExport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc := deps.Perks.Export()
		filename := fmt.Sprintf("perks-export-%s.json", time.Now().Format(time.DateOnly))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		writeJSON(w, http.StatusOK, doc)
	}
}

func handleImport(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportBodySize)
		defer r.Body.Close()

		perks, err := perk.DecodeImport(r.Body)
		if err != nil {
			failure(w, err, "import rejected")
			return
		}
		imported, err := deps.Perks.Replace(r.Context(), perks)
		if err != nil {
			failure(w, err, "import rejected")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"imported": len(imported)})
	}
}

func handleGetDemoNotice(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dismissed, err := deps.Perks.DemoNoticeDismissed(r.Context())
		if err != nil {
			failure(w, err, "failed to read demo notice")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"dismissed": dismissed})
	}
}

func handleDismissDemoNotice(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Perks.DismissDemoNotice(r.Context()); err != nil {
			failure(w, err, "failed to dismiss demo notice")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"dismissed": true})
	}
}
