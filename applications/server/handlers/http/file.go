package http

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/donmikel/batchupload/applications/server"
	"github.com/donmikel/batchupload/applications/server/domain"
)

const (
	filesField = "files"

	messageMalformedRequest = "Malformed multipart request"
	messageUnreadableFile   = "Failed to read uploaded file"
)

func NewRouter(svc server.FileUploadService, maxMemory int64, gatherer prometheus.Gatherer, logger log.Logger) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/file/upload", UploadFilesHandler(svc, maxMemory, logger)).Methods(http.MethodPost)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return r
}

func UploadFilesHandler(svc server.FileUploadService, maxMemory int64, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			level.Warn(logger).Log("msg", "ParseMultipartForm error", "err", err)
			writeOutcome(w, domain.FailedOutcome(messageMalformedRequest), logger)
			return
		}

		items, files, err := openItems(r.MultipartForm.File[filesField])
		release := func() {
			closeAll(files)
			_ = r.MultipartForm.RemoveAll()
		}
		if err != nil {
			release()
			level.Error(logger).Log("msg", "can't open uploaded file", "err", err)
			writeOutcome(w, domain.FailedOutcome(messageUnreadableFile), logger)
			return
		}

		pending := svc.UploadFiles(r.Context(), items)

		outcome, err := pending.Wait(r.Context())
		if err != nil {
			// the batch keeps reading the files, release them once it is done
			go func() {
				<-pending.Done()
				release()
			}()
			level.Warn(logger).Log("msg", "client gone before batch finished", "err", err)
			return
		}
		release()

		writeOutcome(w, outcome, logger)
	}
}

func openItems(headers []*multipart.FileHeader) ([]domain.UploadItem, []io.Closer, error) {
	items := make([]domain.UploadItem, 0, len(headers))
	files := make([]io.Closer, 0, len(headers))

	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			return nil, files, err
		}
		files = append(files, f)

		items = append(items, domain.UploadItem{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        f,
		})
	}

	return items, files, nil
}

func closeAll(files []io.Closer) {
	for _, f := range files {
		_ = f.Close()
	}
}

// writeOutcome answers 400 for every failed batch, processing failures
// included.
func writeOutcome(w http.ResponseWriter, outcome domain.BatchOutcome, logger log.Logger) {
	status := http.StatusOK
	if !outcome.Success {
		status = http.StatusBadRequest
		outcome.UploadedFiles = nil
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(outcome); err != nil {
		level.Error(logger).Log("msg", "can't write response", "err", err)
	}
}
