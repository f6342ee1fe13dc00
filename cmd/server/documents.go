package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	units "github.com/docker/go-units"
	"github.com/go-playground/validator/v10"

	"pdf-assistant/internal/app"
	"pdf-assistant/internal/contract"
	"pdf-assistant/internal/history"
	"pdf-assistant/internal/httputil"
	"pdf-assistant/internal/pdftext"
	"pdf-assistant/internal/pipeline"
)

// multipartOverhead is allowed on top of the file size for other form fields.
const multipartOverhead = 1 << 20

var errMissingFile = errors.New("file is required")

func summarizeHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, opts, ok := parseDocumentRequest(deps, w, r)
		if !ok {
			return
		}
		res, err := deps.Pipeline.Summarize(r.Context(), doc, opts)
		if err != nil {
			failPipeline(deps, w, err)
			return
		}
		record(deps, r, pipeline.ModeSummarize, doc, "", res, opts)
		writeResult(w, res)
	}
}

func askHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, opts, ok := parseDocumentRequest(deps, w, r)
		if !ok {
			return
		}
		question := r.PostFormValue(contract.FieldQuestion)
		if strings.TrimSpace(question) == "" {
			httputil.Fail(deps.Log, w, "question is required", nil, http.StatusBadRequest)
			return
		}
		res, err := deps.Pipeline.Ask(r.Context(), doc, question, opts)
		if err != nil {
			failPipeline(deps, w, err)
			return
		}
		record(deps, r, pipeline.ModeAsk, doc, question, res, opts)
		writeResult(w, res)
	}
}

// parseDocumentRequest reads the upload and the request options, answering
// the request itself when either is unusable.
func parseDocumentRequest(deps app.Deps, w http.ResponseWriter, r *http.Request) (contract.UploadedDocument, contract.Options, bool) {
	doc, ok := readUpload(deps, w, r)
	if !ok {
		return contract.UploadedDocument{}, contract.Options{}, false
	}
	opts, err := contract.ParseOptions(r.PostForm)
	if err != nil {
		httputil.ValidationError(deps.Log, w, "invalid options", []string{err.Error()})
		return contract.UploadedDocument{}, contract.Options{}, false
	}
	if err := opts.Validate(); err != nil {
		httputil.ValidationError(deps.Log, w, "invalid options", contract.Describe(err))
		return contract.UploadedDocument{}, contract.Options{}, false
	}
	return doc, opts, true
}

// readUpload parses the multipart form and returns the "file" part.
func readUpload(deps app.Deps, w http.ResponseWriter, r *http.Request) (contract.UploadedDocument, bool) {
	maxSize := deps.Config.MaxUploadSize
	tooLarge := fmt.Sprintf("file too large (max %s)", units.HumanSize(float64(maxSize)))

	if r.ContentLength > maxSize+multipartOverhead {
		httputil.Fail(deps.Log, w, tooLarge, nil, http.StatusRequestEntityTooLarge)
		return contract.UploadedDocument{}, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.Fail(deps.Log, w, tooLarge, err, http.StatusRequestEntityTooLarge)
			return contract.UploadedDocument{}, false
		}
		httputil.Fail(deps.Log, w, "invalid multipart form", err, http.StatusBadRequest)
		return contract.UploadedDocument{}, false
	}

	file, header, err := r.FormFile(contract.FieldFile)
	if err != nil {
		httputil.Fail(deps.Log, w, errMissingFile.Error(), err, http.StatusBadRequest)
		return contract.UploadedDocument{}, false
	}
	defer file.Close()

	if header.Size > maxSize {
		httputil.Fail(deps.Log, w, tooLarge, nil, http.StatusRequestEntityTooLarge)
		return contract.UploadedDocument{}, false
	}
	content, err := io.ReadAll(file)
	if err != nil {
		httputil.Fail(deps.Log, w, "failed to read file", err, http.StatusInternalServerError)
		return contract.UploadedDocument{}, false
	}
	return contract.UploadedDocument{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
	}, true
}

func failPipeline(deps app.Deps, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pdftext.ErrNotPDF):
		httputil.Fail(deps.Log, w, pdftext.ErrNotPDF.Error(), err, http.StatusUnsupportedMediaType)
	case errors.Is(err, pdftext.ErrPageRange):
		httputil.Fail(deps.Log, w, err.Error(), err, http.StatusBadRequest)
	case errors.Is(err, pipeline.ErrNoText):
		httputil.Fail(deps.Log, w, pipeline.ErrNoText.Error(), err, http.StatusUnprocessableEntity)
	default:
		httputil.Fail(deps.Log, w, "failed to process document", err, http.StatusBadGateway)
	}
}

func failValidation(deps app.Deps, w http.ResponseWriter, err error) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	httputil.ValidationError(deps.Log, w, "invalid request", contract.Describe(err))
	return true
}

func writeResult(w http.ResponseWriter, res contract.Result) {
	w.Header().Set(contract.VersionHeader, res.Version.String())
	httputil.WriteJSON(w, http.StatusOK, res)
}

// record hands a served result to the history recorder. Failures are logged
// and never affect the response.
func record(deps app.Deps, r *http.Request, mode string, doc contract.UploadedDocument, question string, res contract.Result, opts contract.Options) {
	if deps.Recorder == nil {
		return
	}
	model := opts.ModelName
	if model == "" && deps.Config.PipelineProvider == "openai" {
		model = deps.Config.LLMModel
	}
	it := history.FromResult(mode, doc.Filename, question, res, model)
	if err := deps.Recorder.Record(r.Context(), it); err != nil {
		deps.Log.Warn("failed to record interaction", "mode", mode, "id", it.ID, "err", err)
	}
}
