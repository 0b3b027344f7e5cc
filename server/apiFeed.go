package server

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/perimeter/pkg/nn"
	"github.com/cyclopcam/perimeter/server/engine"
	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
)

// frameJSON is the body of a frame submission.
// Omit faces or doors if that detector did not run on this frame. An empty list means
// the detector ran and found nothing.
// SYNC-FRAME-JSON
type frameJSON struct {
	Time    int64          `json:"time"` // Unix milliseconds. Zero means "now".
	Width   int            `json:"width"`
	Height  int            `json:"height"`
	Persons []nn.PersonBox `json:"persons"`
	Faces   []nn.FaceMatch `json:"faces"`
	Doors   []nn.DoorBox   `json:"doors"`
	Image   string         `json:"image"` // Optional base64 JPEG of the frame
}

func parseFeedIDOrPanic(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		www.PanicBadRequestf("Invalid feed ID '%v'", s)
	}
	return id
}

func (s *Server) readFrameOrPanic(w http.ResponseWriter, r *http.Request, params httprouter.Params) *engine.FrameInput {
	feedID := parseFeedIDOrPanic(params.ByName("feed"))
	f := frameJSON{}
	www.ReadJSON(w, r, &f, maxFrameBytes)

	in := &engine.FrameInput{
		FeedID:  feedID,
		Width:   f.Width,
		Height:  f.Height,
		Persons: f.Persons,
		Faces:   f.Faces,
		Doors:   f.Doors,
	}
	if f.Time != 0 {
		in.Time = time.UnixMilli(f.Time)
	}
	if f.Image != "" {
		jpg, err := base64.StdEncoding.DecodeString(f.Image)
		if err != nil {
			www.PanicBadRequestf("Image is not valid base64: %v", err)
		}
		img, err := cimg.Decompress(jpg)
		if err != nil {
			www.PanicBadRequestf("Failed to decode image: %v", err)
		}
		in.Image = nn.ImageCrop{
			NChan:       img.NChan(),
			Pixels:      img.Pixels,
			ImageWidth:  img.Stride / img.NChan(),
			ImageHeight: img.Height,
			CropWidth:   img.Width,
			CropHeight:  img.Height,
		}
		if in.Width == 0 || in.Height == 0 {
			in.Width, in.Height = img.Width, img.Height
		}
	}
	if in.Width <= 0 || in.Height <= 0 {
		www.PanicBadRequestf("Frame width and height are required when no image is supplied")
	}
	return in
}

func (s *Server) httpFeedAnalyze(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	in := s.readFrameOrPanic(w, r, params)
	result, err := s.Monitor.Analyze(in)
	www.Check(err)
	www.SendJSON(w, result)
}

func (s *Server) httpFeedFrame(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	in := s.readFrameOrPanic(w, r, params)
	www.Check(s.Monitor.SubmitFrame(in))
	www.SendOK(w)
}

func (s *Server) httpFeedDelete(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	feedID := parseFeedIDOrPanic(params.ByName("feed"))
	s.Monitor.RemoveFeed(feedID)
	www.SendOK(w)
}

// Stream the frame results of a feed over a websocket, until the client disconnects
func (s *Server) httpFeedStream(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	feedID := parseFeedIDOrPanic(params.ByName("feed"))

	c, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Errorf("httpFeedStream websocket upgrade failed: %v", err)
		return
	}
	defer c.Close()

	results := s.Monitor.AddWatcher(feedID)
	defer s.Monitor.RemoveWatcher(feedID, results)

	// We don't expect the client to send us anything, but we must read in order to notice a close
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := c.NextReader(); err != nil {
				return
			}
		}
	}()

	s.Log.Infof("Streaming feed %v to %v", feedID, r.RemoteAddr)
	for {
		select {
		case <-clientGone:
			s.Log.Infof("Stream of feed %v to %v closed", feedID, r.RemoteAddr)
			return
		case res := <-results:
			c.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.WriteJSON(res); err != nil {
				s.Log.Warnf("Failed to write to stream of feed %v: %v", feedID, err)
				return
			}
		}
	}
}
