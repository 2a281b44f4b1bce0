package handlers

import (
	"net/http"
	"strconv"

	"github.com/medchain/medchain-server/internal/models"
	"github.com/medchain/medchain-server/internal/qr"
	"go.uber.org/zap"
)

const maxQRSize = 1024

// respondQR writes the record's QR code as a PNG. ?size= picks the edge
// length in pixels.
func respondQR(w http.ResponseWriter, r *http.Request, logger *zap.SugaredLogger, record models.Record) {
	size := qr.DefaultSize
	if s := r.URL.Query().Get("size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 64 || n > maxQRSize {
			respondError(w, http.StatusBadRequest, "size must be between 64 and 1024")
			return
		}
		size = n
	}

	png, err := qr.Encode(record, size)
	if err != nil {
		logger.Errorw("QR encoding failed", "id", record.RecordID(), "error", err)
		respondError(w, http.StatusInternalServerError, qr.ErrEncode.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
