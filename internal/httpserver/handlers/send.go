package handlers

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/orbit/internal/browser"
	"github.com/MrSnakeDoc/orbit/internal/completion"
	"github.com/MrSnakeDoc/orbit/internal/domain"
	"github.com/MrSnakeDoc/orbit/internal/httpserver/deps"
)

type jobResponse struct {
	TabID         string `json:"tabId"`
	UserMessageID string `json:"userMessageId,omitempty"`
	MessageID     string `json:"messageId,omitempty"`
	Model         string `json:"model,omitempty"`
	Duplicate     bool   `json:"duplicate,omitempty"`
	Redirect      string `json:"redirect,omitempty"`
	Done          bool   `json:"done"`
	Error         string `json:"error,omitempty"`
}

// jobStatus reports a started job. Jobs that settled before dispatch,
// such as duplicates, redirects or rejected routes, carry their outcome.
func jobStatus(j *completion.Job) (int, jobResponse) {
	res := j.IDs()
	select {
	case <-j.Done():
		res = j.Wait()
	default:
		return http.StatusAccepted, toJobResponse(res, false)
	}
	if res.Duplicate {
		return http.StatusOK, toJobResponse(res, true)
	}
	return http.StatusAccepted, toJobResponse(res, true)
}

func toJobResponse(res completion.Result, finished bool) jobResponse {
	out := jobResponse{
		TabID:         res.TabID,
		UserMessageID: res.UserMessageID,
		MessageID:     res.MessageID,
		Model:         res.Model,
		Duplicate:     res.Duplicate,
		Redirect:      res.Redirect,
		Done:          finished,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

type sendRequest struct {
	TabID       string              `json:"tabId"`
	Content     string              `json:"content"`
	Mode        domain.Mode         `json:"mode"`
	Attachments []domain.Attachment `json:"attachments"`
}

// Send posts a chat message. The response returns as soon as the request
// is dispatched; progress arrives on the event stream.
func Send(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendRequest
		if err := decode(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		if req.Content == "" && len(req.Attachments) == 0 {
			writeError(w, http.StatusBadRequest, "content or attachments required")
			return
		}

		job, err := d.Browser.Send(r.Context(), browser.SendRequest{
			TabID:       req.TabID,
			Content:     req.Content,
			Attachments: req.Attachments,
			Mode:        req.Mode,
		})
		if err != nil {
			writeErr(w, err)
			return
		}
		status, body := jobStatus(job)
		writeJSON(w, status, body)
	}
}

type submitRequest struct {
	TabID       string              `json:"tabId"`
	Input       string              `json:"input"`
	Mode        domain.Mode         `json:"mode"`
	Attachments []domain.Attachment `json:"attachments"`
}

type submitResponse struct {
	Kind         string       `json:"kind"`
	Query        string       `json:"query,omitempty"`
	DisplayURL   string       `json:"displayUrl,omitempty"`
	URL          string       `json:"url,omitempty"`
	OpenExternal string       `json:"openExternal,omitempty"`
	Job          *jobResponse `json:"job,omitempty"`
}

// Submit handles address-bar input: navigation, query:// or free-text search.
func Submit(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := decode(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		if strings.TrimSpace(req.Input) == "" {
			writeError(w, http.StatusBadRequest, "input required")
			return
		}

		out, err := d.Browser.Submit(r.Context(), browser.SubmitRequest{
			TabID:       req.TabID,
			Input:       req.Input,
			Mode:        req.Mode,
			Attachments: req.Attachments,
		})
		if err != nil {
			writeErr(w, err)
			return
		}

		resp := submitResponse{
			Kind:         out.Destination.Kind.String(),
			Query:        out.Destination.Query,
			DisplayURL:   out.Destination.DisplayURL,
			URL:          out.Destination.URL,
			OpenExternal: out.OpenExternal,
		}
		status := http.StatusOK
		if out.Job != nil {
			var job jobResponse
			status, job = jobStatus(out.Job)
			resp.Job = &job
		}
		writeJSON(w, status, resp)
	}
}
