// MIT License
//
// # Copyright (c) 2026 Kolin
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
package handlers

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"

	"geolynx/internal/enrichment"
)

// MetadataService resolves an IP to its cached metadata.
type MetadataService interface {
	GetIPMetadata(ip string) enrichment.Metadata
}

// IPResponse is the body of both IP lookup endpoints.
type IPResponse struct {
	IP   string              `json:"ip"`
	Data enrichment.Metadata `json:"data"`
}

type IPHandler struct {
	service           MetadataService
	logger            *pterm.Logger
	trustForwardedFor bool
}

func NewIPHandler(service MetadataService, logger *pterm.Logger, trustForwardedFor bool) *IPHandler {
	return &IPHandler{
		service:           service,
		logger:            logger,
		trustForwardedFor: trustForwardedFor,
	}
}

// GetCallerMetadata resolves the ?ip= parameter when given, otherwise the
// address of the caller.
func (h *IPHandler) GetCallerMetadata(c *gin.Context) {
	ip := strings.TrimSpace(c.Query("ip"))
	if ip == "" {
		ip = h.callerIP(c)
	}
	h.respond(c, ip)
}

// GetMetadata resolves the IP given in the path.
func (h *IPHandler) GetMetadata(c *gin.Context) {
	h.respond(c, c.Param("ip"))
}

func (h *IPHandler) respond(c *gin.Context, ip string) {
	if net.ParseIP(ip) == nil {
		h.logger.Debug("Rejected lookup for invalid IP", h.logger.Args("ip", ip))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid IP address", "ip": ip})
		return
	}

	c.JSON(http.StatusOK, IPResponse{IP: ip, Data: h.service.GetIPMetadata(ip)})
}

// callerIP takes the first X-Forwarded-For entry when proxies are trusted,
// the connection's remote address otherwise.
func (h *IPHandler) callerIP(c *gin.Context) string {
	if h.trustForwardedFor {
		if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	return c.RemoteIP()
}
