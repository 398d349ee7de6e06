package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/axtrace/chessapi/internal/board"
	"github.com/axtrace/chessapi/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes {"detail": "..."}, the shape of auth and routing errors.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// FieldError is one entry of a 422 response.
type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

// ValidationResponse is the 422 body.
type ValidationResponse struct {
	Detail []FieldError `json:"detail"`
}

func writeValidation(w http.ResponseWriter, errs ...FieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, ValidationResponse{Detail: errs})
}

// moveBody mirrors service.MoveRequest with fen as a pointer so a missing
// field can be told apart from an empty one.
type moveBody struct {
	FEN   *string  `json:"fen"`
	Depth *int     `json:"depth"`
	Time  *float64 `json:"time"`
}

// decodeMoveRequest reads a best-move body. Any failure is returned as the
// field errors to report with 422.
func decodeMoveRequest(r io.Reader) (service.MoveRequest, []FieldError) {
	var body moveBody
	dec := json.NewDecoder(r)
	if err := dec.Decode(&body); err != nil {
		return service.MoveRequest{}, []FieldError{decodeError(err)}
	}
	if body.FEN == nil {
		return service.MoveRequest{}, []FieldError{{
			Loc:  []string{"body", "fen"},
			Msg:  "Field required",
			Type: "missing",
		}}
	}
	return service.MoveRequest{FEN: *body.FEN, Depth: body.Depth, Time: body.Time}, nil
}

func decodeError(err error) FieldError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		loc := []string{"body"}
		if typeErr.Field != "" {
			loc = append(loc, strings.Split(typeErr.Field, ".")...)
		}
		return FieldError{
			Loc:  loc,
			Msg:  fmt.Sprintf("Input should be a valid %s", jsonKind(typeErr.Type.Kind().String())),
			Type: "type_error",
		}
	}
	if errors.Is(err, io.EOF) {
		return FieldError{Loc: []string{"body"}, Msg: "Field required", Type: "missing"}
	}
	return FieldError{Loc: []string{"body"}, Msg: "JSON decode error: " + err.Error(), Type: "json_invalid"}
}

func jsonKind(kind string) string {
	switch {
	case strings.HasPrefix(kind, "int"):
		return "integer"
	case strings.HasPrefix(kind, "float"):
		return "number"
	case kind == "struct":
		return "object"
	default:
		return kind
	}
}

// fenError converts a board validation failure to its 422 entry.
func fenError(err *board.ValidationError) FieldError {
	return FieldError{
		Loc:  []string{"body", "fen"},
		Msg:  "Value error, Invalid FEN string: " + err.Error(),
		Type: "value_error",
	}
}
