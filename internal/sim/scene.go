package sim

import (
	"fmt"
	"time"

	"github.com/signalsfoundry/star-system-simulator/core"
	"github.com/signalsfoundry/star-system-simulator/internal/config"
	"github.com/signalsfoundry/star-system-simulator/model"
	"github.com/signalsfoundry/star-system-simulator/timectrl"
)

// Scene is the resolved start-up description of every entity. All positions
// are absolute screen coordinates.
type Scene struct {
	Period      time.Duration
	TimeScale   float64
	Mode        timectrl.Mode
	CentralBody core.CentralBodyConfig
	Satellites  []core.SatelliteConfig
}

// SceneFromConfig places the central body at the screen centre and each
// satellite at centre + placement.
func SceneFromConfig(cfg *config.Config) (Scene, error) {
	if err := cfg.Validate(); err != nil {
		return Scene{}, err
	}
	origin := cfg.Origin()

	bodyColor, err := model.ParseColor(cfg.CentralBody.Color)
	if err != nil {
		return Scene{}, fmt.Errorf("central body color: %w", err)
	}
	scene := Scene{
		Period:    cfg.TickPeriod(),
		TimeScale: cfg.Physics.TimeScale,
		Mode:      cfg.ClockMode(),
		CentralBody: core.CentralBodyConfig{
			ID:       cfg.CentralBody.ID,
			Position: origin,
			Speed:    cfg.CentralBody.Speed,
			Radius:   cfg.CentralBody.Radius,
			Color:    bodyColor,
		},
		Satellites: make([]core.SatelliteConfig, 0, len(cfg.Satellites)),
	}

	for _, s := range cfg.Satellites {
		c, err := model.ParseColor(s.Color)
		if err != nil {
			return Scene{}, fmt.Errorf("satellite %s color: %w", s.ID, err)
		}
		scene.Satellites = append(scene.Satellites, core.SatelliteConfig{
			ID:           s.ID,
			Position:     origin.Add(model.V(s.Placement.X, s.Placement.Y)),
			Phase:        s.Phase,
			Amplitude:    s.Amplitude,
			AngularSpeed: s.AngularSpeed,
			Radius:       s.Radius,
			Color:        c,
		})
	}
	return scene, nil
}
