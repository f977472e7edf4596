package api

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/kjannette/pricegraph/internal/chart"
	"github.com/kjannette/pricegraph/internal/external"
	"github.com/kjannette/pricegraph/internal/models"
	"github.com/kjannette/pricegraph/internal/pricegraph"
)

const msgInvalidTicker = "Invalid ticker"

type indexPage struct {
	AppName   string
	Msg       string
	Ticker    string
	Fields    []string
	MaxFields int
	Recent    []models.Lookup
}

type graphPage struct {
	AppName string
	Ticker  string
	Rows    int
	Asset   string
	Script  template.HTML
	Div     template.HTML
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/index", http.StatusFound)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderIndex(w, r, http.StatusOK, "", "")
}

func (s *Server) handlePriceGraph(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderIndex(w, r, http.StatusBadRequest, "Could not read the submitted form.", "")
		return
	}

	ticker := r.PostFormValue("ticker")
	q, err := pricegraph.ParseQuery(ticker, r.PostForm["price_type"])
	if err != nil {
		s.renderBadRequest(w, r, err, ticker)
		return
	}

	res, err := s.svc.Lookup(r.Context(), q)
	if err != nil {
		s.renderBadRequest(w, r, err, q.Ticker)
		return
	}

	switch res.Outcome {
	case external.OutcomeEmpty:
		s.renderIndex(w, r, http.StatusOK, msgInvalidTicker, q.Ticker)
		return
	case external.OutcomeUpstreamError:
		log.Warn().Err(res.Err).Str("ticker", q.Ticker).Msg("upstream failure")
		s.renderIndex(w, r, http.StatusBadGateway, upstreamMessage(res.Err), q.Ticker)
		return
	}

	s.render(w, http.StatusOK, "pricegraph.html", graphPage{
		AppName: s.appName,
		Ticker:  q.Ticker,
		Rows:    res.Rows,
		Asset:   chart.EChartsAsset,
		Script:  res.Fragments.Script,
		Div:     res.Fragments.Div,
	})
}

func (s *Server) renderBadRequest(w http.ResponseWriter, r *http.Request, err error, ticker string) {
	var bre *pricegraph.BadRequestError
	if !errors.As(err, &bre) {
		log.Error().Err(err).Str("ticker", ticker).Msg("lookup failed")
		s.renderIndex(w, r, http.StatusInternalServerError, "Something went wrong drawing the chart.", ticker)
		return
	}

	log.Debug().Str("issues", bre.Error()).Msg("bad request")
	s.renderIndex(w, r, http.StatusBadRequest, bre.Summary(), ticker)
}

func upstreamMessage(err *external.UpstreamError) string {
	if err == nil || err.Status == 0 {
		return "The price provider could not be reached. Try again later."
	}
	return fmt.Sprintf("The price provider returned an error (status %d). Try again later.", err.Status)
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, msg, ticker string) {
	recent, err := s.svc.Recent(r.Context(), recentOnIndex)
	if err != nil {
		log.Warn().Err(err).Msg("load recent lookups")
	}

	s.render(w, status, "index.html", indexPage{
		AppName:   s.appName,
		Msg:       msg,
		Ticker:    ticker,
		Fields:    s.fields,
		MaxFields: chart.MaxFields,
		Recent:    recent,
	})
}

// render executes into a buffer first so a template fault becomes a clean 500.
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("render page")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
