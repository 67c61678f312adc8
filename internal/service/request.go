package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"transit-scorer/internal/network"
	"transit-scorer/internal/pipeline"
	"transit-scorer/internal/traj"
)

var ErrInvalidRequest = errors.New("invalid request")

var validate = validator.New()

// Request is one matched trajectory to score: the matcher's output plus the
// cleaned GPS points it was matched from.
type Request struct {
	ID     string             `json:"id" validate:"max=256"`
	Status int                `json:"status"`
	EPath  []network.EdgeID   `json:"epath"`
	Step0  float64            `json:"step_0" validate:"gte=0,lte=1"`
	StepN  float64            `json:"step_n" validate:"gte=0,lte=1"`
	Probs  map[string]float64 `json:"probs"`
	Points []Point            `json:"points" validate:"required,min=1,dive"`
}

type Point struct {
	T   time.Time `json:"t" validate:"required"`
	Lon float64   `json:"lon" validate:"gte=-180,lte=180"`
	Lat float64   `json:"lat" validate:"gte=-90,lte=90"`
}

// DecodeRequest parses and validates a JSON request. The partially decoded
// request is returned along with the error so its id can still be echoed.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := validate.Struct(req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return req, nil
}

func (r Request) Match() pipeline.Match {
	return pipeline.Match{ID: r.ID, Status: r.Status, EPath: r.EPath, Step0: r.Step0, StepN: r.StepN, Probs: r.Probs}
}

func (r Request) Trajectory() traj.Trajectory {
	pts := make([]traj.Point, len(r.Points))
	for i, p := range r.Points {
		pts[i] = traj.Point{Time: p.T, Lon: p.Lon, Lat: p.Lat}
	}
	return traj.Trajectory{ID: r.ID, Points: pts}
}
