package app

import (
	"fmt"

	"marquee/internal/behavior"
	"marquee/internal/config"
	"marquee/internal/scene"
)

// BuildScene turns the show section into an unfrozen scene at fps.
func BuildScene(show config.ShowConfig, fps int) (*scene.Scene, error) {
	sc, err := scene.New(fps)
	if err != nil {
		return nil, err
	}
	byID := map[string]*scene.Text{}

	for i, pc := range show.Panels {
		p := sc.NewPanel()
		if err := p.Delay(pc.Delay); err != nil {
			return nil, fmt.Errorf("panel %d: %w", i, err)
		}
		if pc.Frames != nil {
			err = p.Frames(*pc.Frames)
		} else {
			err = p.Duration(pc.Duration)
		}
		if err != nil {
			return nil, fmt.Errorf("panel %d: %w", i, err)
		}

		for j, oc := range pc.Objects {
			var obj *scene.Text
			if oc.Ref != "" {
				obj = byID[oc.Ref]
				if obj == nil {
					return nil, fmt.Errorf("panel %d object %d: unknown ref %q", i, j, oc.Ref)
				}
			} else {
				obj, err = buildText(oc)
				if err != nil {
					return nil, fmt.Errorf("panel %d object %d: %w", i, j, err)
				}
				if oc.ID != "" {
					byID[oc.ID] = obj
				}
			}
			if err := p.Add(obj); err != nil {
				return nil, fmt.Errorf("panel %d object %d: %w", i, j, err)
			}
		}
	}
	return sc, nil
}

func buildText(oc config.ObjectConfig) (*scene.Text, error) {
	c, err := config.ParseColor(oc.Color)
	if err != nil {
		return nil, err
	}
	txt := scene.NewText(oc.Text, c, oc.X, oc.Y)
	if oc.Label != "" {
		txt.SetLabel(oc.Label)
	}
	for k, tc := range oc.Tasks {
		b, err := behavior.New(tc.Behavior, behavior.Params(tc.Params))
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", k, err)
		}
		tb := txt.Every(tc.Every).Do(b)
		if tc.Times != nil {
			tb.Times(*tc.Times)
		}
		if tc.Name != "" {
			tb.Named(tc.Name)
		}
	}
	return txt, nil
}

// DemoShow is played when the config declares no panels: a counting,
// sliding "Hello" followed by a sliding "Lmao" changing color every second.
func DemoShow() config.ShowConfig {
	three := 3
	return config.ShowConfig{Panels: []config.PanelConfig{
		{
			Duration: 1,
			Objects: []config.ObjectConfig{{
				Text: "Hello", Color: "#ffffff", X: 10, Y: 15,
				Tasks: []config.TaskConfig{
					{Behavior: "counter", Every: 0.1, Times: &three},
					{Behavior: "sliding", Every: 0.1},
				},
			}},
		},
		{
			Duration: 1,
			Objects: []config.ObjectConfig{{
				Text: "Lmao", Color: "#00ff64", X: 15, Y: 30,
				Tasks: []config.TaskConfig{
					{Behavior: "sliding", Every: 0.1},
					{Behavior: "randomcolor", Every: 1},
				},
			}},
		},
	}}
}
