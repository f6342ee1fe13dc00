package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"pdf-assistant/internal/app"
	"pdf-assistant/internal/contract"
	"pdf-assistant/internal/convert"
	"pdf-assistant/internal/generate"
	"pdf-assistant/internal/httputil"
	"pdf-assistant/internal/pdftext"
	"pdf-assistant/internal/translate"
)

const textPlain = "text/plain; charset=utf-8"

func translateHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Translate == nil {
			httputil.Fail(deps.Log, w, "translation unavailable", nil, http.StatusServiceUnavailable)
			return
		}
		doc, ok := readUpload(deps, w, r)
		if !ok {
			return
		}

		format := strings.ToLower(strings.TrimSpace(r.PostFormValue("format")))
		switch format {
		case "":
			format = "json"
		case "json", "txt", "columns":
		default:
			httputil.ValidationError(deps.Log, w, "invalid request", []string{"format must be one of: json, txt, columns"})
			return
		}
		req := translate.Request{Content: doc.Content, Target: r.PostFormValue("target_lang")}
		var details []string
		var err error
		if req.StartPage, err = formInt(r, contract.FieldStartPage); err != nil {
			details = append(details, err.Error())
		}
		if req.EndPage, err = formInt(r, contract.FieldEndPage); err != nil {
			details = append(details, err.Error())
		}
		if len(details) > 0 {
			httputil.ValidationError(deps.Log, w, "invalid request", details)
			return
		}

		res, err := deps.Translate.Translate(r.Context(), req)
		if err != nil {
			if failValidation(deps, w, err) {
				return
			}
			switch {
			case errors.Is(err, translate.ErrLanguage), errors.Is(err, pdftext.ErrPageRange):
				httputil.Fail(deps.Log, w, err.Error(), err, http.StatusBadRequest)
			case errors.Is(err, pdftext.ErrNotPDF):
				httputil.Fail(deps.Log, w, pdftext.ErrNotPDF.Error(), err, http.StatusUnsupportedMediaType)
			case errors.Is(err, translate.ErrNoText):
				httputil.Fail(deps.Log, w, translate.ErrNoText.Error(), err, http.StatusUnprocessableEntity)
			case errors.Is(err, translate.ErrTranslator):
				httputil.Fail(deps.Log, w, translate.ErrTranslator.Error(), err, http.StatusBadGateway)
			default:
				httputil.Fail(deps.Log, w, "failed to translate document", err, http.StatusInternalServerError)
			}
			return
		}

		switch format {
		case "txt":
			httputil.WriteAttachment(w, "translated.txt", textPlain, []byte(translate.Text(res)))
		case "columns":
			httputil.WriteAttachment(w, "translated-columns.txt", textPlain, []byte(translate.Columns(res)))
		default:
			httputil.WriteJSON(w, http.StatusOK, res)
		}
	}
}

func formInt(r *http.Request, field string) (int, error) {
	raw := strings.TrimSpace(r.PostFormValue(field))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &contract.FieldError{Field: field, Value: raw, Err: err}
	}
	return n, nil
}

func convertHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := readUpload(deps, w, r)
		if !ok {
			return
		}
		dir, err := convert.ParseDirection(r.PostFormValue("direction"))
		if err != nil {
			httputil.Fail(deps.Log, w, err.Error(), err, http.StatusBadRequest)
			return
		}

		res, err := deps.Convert.Convert(r.Context(), dir, doc)
		switch {
		case errors.Is(err, convert.ErrInputType):
			httputil.Fail(deps.Log, w, err.Error(), err, http.StatusUnsupportedMediaType)
			return
		case errors.Is(err, convert.ErrConverter):
			httputil.Fail(deps.Log, w, convert.ErrConverter.Error(), err, http.StatusBadGateway)
			return
		case err != nil:
			httputil.Fail(deps.Log, w, "failed to convert document", err, http.StatusInternalServerError)
			return
		}
		deps.Log.Info("document converted", "direction", dir, "bytes", len(res.Content))
		httputil.WriteAttachment(w, res.Filename, res.ContentType, res.Content)
	}
}

func generateHandler(deps app.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req generate.Request
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			httputil.Fail(deps.Log, w, "invalid payload", err, http.StatusBadRequest)
			return
		}

		out, err := deps.Generator.Generate(r.Context(), req)
		if err != nil {
			if failValidation(deps, w, err) {
				return
			}
			if errors.Is(err, generate.ErrUnavailable) {
				httputil.Fail(deps.Log, w, generate.ErrUnavailable.Error(), err, http.StatusServiceUnavailable)
				return
			}
			httputil.Fail(deps.Log, w, "generation failed", err, http.StatusBadGateway)
			return
		}

		if req.Download {
			httputil.WriteAttachment(w, "generated.txt", textPlain, []byte(out))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"result": out})
	}
}
