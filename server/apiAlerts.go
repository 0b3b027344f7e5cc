package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/cyclopcam/perimeter/server/alertdb"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

func (s *Server) httpAlertsList(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	limit := 100
	if v := www.QueryValue(r, "limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			www.PanicBadRequestf("Invalid limit '%v'", v)
		}
		limit = n
	}
	alerts, err := s.AlertDB.Alerts(limit)
	www.Check(err)
	www.SendJSON(w, alerts)
}

func (s *Server) httpAlertsClear(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	n, err := s.AlertDB.Clear()
	www.Check(err)
	s.Log.Infof("Cleared %v alerts", n)
	www.SendOK(w)
}

func (s *Server) httpAlertsAck(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	err := s.AlertDB.Acknowledge(params.ByName("id"))
	if errors.Is(err, alertdb.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	www.Check(err)
	www.SendOK(w)
}
