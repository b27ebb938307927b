package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/confirmaparty/confirma/internal/whatsapp"
	apperrors "github.com/confirmaparty/confirma/pkg/errors"
	"github.com/confirmaparty/confirma/pkg/response"
)

// WhatsAppHandler reports the transport connection state and, for the direct
// session transport, serves the pairing QR code.
type WhatsAppHandler struct {
	transport whatsapp.Transport
}

// NewWhatsAppHandler constructs a WhatsAppHandler.
func NewWhatsAppHandler(transport whatsapp.Transport) *WhatsAppHandler {
	return &WhatsAppHandler{transport: transport}
}

// Status reports whether the messaging channel is connected.
func (h *WhatsAppHandler) Status(c *gin.Context) {
	reporter, ok := h.transport.(whatsapp.StatusReporter)
	if !ok {
		response.Error(c, apperrors.ErrTransportUnavailable)
		return
	}
	response.Success(c, http.StatusOK, reporter.Status())
}

// QR serves the pairing QR code as a PNG. Only meaningful for the direct
// session transport while unpaired.
func (h *WhatsAppHandler) QR(c *gin.Context) {
	meow, ok := h.transport.(*whatsapp.MeowTransport)
	if !ok {
		response.Error(c, apperrors.ErrNotFound)
		return
	}

	png, err := meow.QRCodePNG()
	if err != nil {
		response.Error(c, err)
		return
	}
	if png == nil {
		response.Error(c, apperrors.ErrNotFound)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
