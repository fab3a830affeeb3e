package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/xelth-com/sharpcrmgo/internal/engine"
	"github.com/xelth-com/sharpcrmgo/internal/models"
	"github.com/xelth-com/sharpcrmgo/internal/services/printer"
	"github.com/xelth-com/sharpcrmgo/internal/utils"
)

// trayLabel renders the printable PDF label for a tray
func (r *Router) trayLabel(w http.ResponseWriter, req *http.Request) {
	id, ok := pathID(w, req)
	if !ok {
		return
	}
	var tray models.Tray
	if err := r.db.First(&tray, id).Error; err != nil {
		respondError(w, http.StatusNotFound, "Tray not found")
		return
	}

	pdf, err := printer.TrayLabelPDF(&tray)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to generate label")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=tray-%d.pdf", tray.ID))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

// scanTray resolves a scanned label QR payload (or a hand-typed tray
// number) to the live tray
func (r *Router) scanTray(w http.ResponseWriter, req *http.Request) {
	scan, err := utils.DecodeTrayCode(req.URL.Query().Get("code"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid scan code")
		return
	}

	var tray *models.Tray
	if scan.TrayID != 0 {
		tray, err = r.store.TrayByID(req.Context(), scan.TrayID)
	} else {
		tray, err = r.store.LiveTrayByNumber(req.Context(), scan.Number)
	}
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Tray not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to resolve tray")
		return
	}

	respondJSON(w, http.StatusOK, tray)
}
