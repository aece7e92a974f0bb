package config

// Presets are named ready-to-run scan setups. "reference" mirrors the
// published 216-Kleopatra grid; "coarse" is a fast demonstration scan
// over the retrograde family region.
var Presets = map[string]*Config{
	"reference": {
		Body: "kleopatra",
		Search: SearchConfig{
			X0:       RangeConfig{Min: -3, Max: 2, Step: 0.01},
			C:        RangeConfig{Min: -3, Max: 5, Step: 0.01},
			Symmetry: "planar",
		},
	},
	"coarse": {
		Body: "kleopatra",
		Search: SearchConfig{
			X0:       RangeConfig{Min: -2.6, Max: -1.2, Step: 0.05},
			C:        RangeConfig{Min: 2.5, Max: 4.5, Step: 0.1},
			Symmetry: "planar",
		},
	},
	"vertical": {
		Body: "kleopatra",
		Search: SearchConfig{
			X0:       RangeConfig{Min: -2.5, Max: -1.5, Step: 0.05},
			C:        RangeConfig{Min: 2.5, Max: 4.0, Step: 0.1},
			Symmetry: "vertical",
			Z0:       0.1,
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *p
	return &c
}

// ListPresets returns the available preset names.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	return names
}
