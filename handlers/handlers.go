// Package handlers provides HTTP request handlers for the forecast API endpoints.
// It includes response formatting, query parsing and the mapping of forecast errors to
// status codes.
package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/Yafet01/drug-prescription-app/forecast"
	"github.com/Yafet01/drug-prescription-app/logging"
)

// csvHeader is the column row of the exported point table
var csvHeader = []string{"Month", "Medicine", "Disease", "Predicted Quantity"}

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if _, err := w.Write(data); err != nil {
		logging.Warn("Failed to write response", "error", err)
	}
}

// RespondWithError writes a JSON error response
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}

// queryError is a malformed query parameter, reported as 400
type queryError struct {
	param   string
	message string
}

func (e *queryError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.param, e.message)
}

// medicineParams collects the medicine selection: repeated medicine parameters, each of which
// may also be a comma-separated list
func medicineParams(r *http.Request) []string {
	var out []string
	for _, v := range r.URL.Query()["medicine"] {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

func intParam(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, &queryError{param: name, message: "is required"}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &queryError{param: name, message: fmt.Sprintf("%q is not a number", raw)}
	}
	return n, nil
}

// writeForecastCSV writes the point table of result as an attachment
func writeForecastCSV(w http.ResponseWriter, result *forecast.Result, now time.Time) {
	first := "forecast"
	if len(result.Medicines) > 0 {
		first = result.Medicines[0].Medicine
	}
	filename := fmt.Sprintf("forecast_%s_%s.csv", safeFilename(first), now.Format("20060102_150405"))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write(csvHeader)
	for _, p := range result.Points() {
		_ = cw.Write([]string{
			strconv.Itoa(p.Month),
			p.Medicine,
			p.Disease,
			strconv.FormatInt(p.Predicted, 10),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		logging.Warn("Failed to write forecast CSV", "error", err)
	}
}

// safeFilename keeps letters, digits and hyphens and replaces everything else with an underscore
func safeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			return r
		}
		return '_'
	}, name)
}
