package http

import (
	"net/http"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/donmikel/batchupload/applications/server"
	"github.com/donmikel/batchupload/applications/server/config"
)

func NewHTTPServer(conf config.Api, uploadService server.FileUploadService, gatherer prometheus.Gatherer, logger log.Logger) *http.Server {
	mux := NewRouter(uploadService, conf.MaxMemory, gatherer, logger)
	return &http.Server{
		Addr:    conf.HTTPAddr,
		Handler: mux,
	}
}
