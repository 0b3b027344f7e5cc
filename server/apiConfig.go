package server

import (
	"errors"
	"net/http"

	"github.com/cyclopcam/perimeter/server/configdb"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

const maxConfigBytes = 1024 * 1024

// Translate configdb errors into HTTP responses. Returns false if the error was handled.
func checkConfigErr(w http.ResponseWriter, err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, configdb.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return false
	}
	www.Check(err)
	return false
}

func (s *Server) httpZonesList(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	zones, err := s.ConfigDB.Zones()
	www.Check(err)
	if feed := www.QueryValue(r, "feed"); feed != "" {
		feedID := parseFeedIDOrPanic(feed)
		filtered := []configdb.CameraZone{}
		for _, z := range zones {
			if z.FeedID == feedID {
				filtered = append(filtered, z)
			}
		}
		zones = filtered
	}
	www.SendJSON(w, zones)
}

func (s *Server) httpZonesCreate(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	z := configdb.CameraZone{Active: true}
	www.ReadJSON(w, r, &z, maxConfigBytes)
	if err := s.ConfigDB.AddZone(&z); err != nil {
		www.PanicBadRequestf("%v", err)
	}
	www.SendJSON(w, &z)
}

func (s *Server) httpZonesUpdate(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	upd := configdb.ZoneUpdate{}
	www.ReadJSON(w, r, &upd, maxConfigBytes)
	z, err := s.ConfigDB.UpdateZone(params.ByName("id"), &upd)
	if errors.Is(err, configdb.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	} else if err != nil {
		www.PanicBadRequestf("%v", err)
	}
	www.SendJSON(w, z)
}

func (s *Server) httpZonesDelete(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if checkConfigErr(w, s.ConfigDB.DeleteZone(params.ByName("id"))) {
		www.SendOK(w)
	}
}

func (s *Server) httpDoorAreasGet(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	areas, err := s.ConfigDB.DoorAreas()
	www.Check(err)
	www.SendJSON(w, areas)
}

func (s *Server) httpDoorAreasSet(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	areas := []configdb.DoorArea{}
	www.ReadJSON(w, r, &areas, maxConfigBytes)
	saved, err := s.ConfigDB.SetDoorAreas(areas)
	www.Check(err)
	www.SendJSON(w, saved)
}

func (s *Server) httpPlanDoorsList(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	doors, err := s.ConfigDB.PlanDoors()
	www.Check(err)
	www.SendJSON(w, doors)
}

func (s *Server) httpPlanDoorsCreate(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	d := configdb.PlanDoor{}
	www.ReadJSON(w, r, &d, maxConfigBytes)
	if d.Name == "" {
		www.PanicBadRequestf("Door name is required")
	}
	www.Check(s.ConfigDB.AddPlanDoor(&d))
	www.SendJSON(w, &d)
}

func (s *Server) httpPlanDoorsDelete(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if checkConfigErr(w, s.ConfigDB.DeletePlanDoor(params.ByName("id"))) {
		www.SendOK(w)
	}
}
