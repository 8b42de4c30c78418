package model

// Asset is a quoted instrument: prices are stored under Name exactly as
// positions spell it.
type Asset struct {
	Name  string
	Class AssetClass
}

// TrackedAssets returns each (name, class) pair of MARKET positions once, in
// the order of first appearance.
func TrackedAssets(positions []Position) []Asset {
	seen := make(map[Asset]struct{})
	out := make([]Asset, 0, len(positions))
	for _, p := range positions {
		if p.Kind != Market {
			continue
		}
		a := Asset{Name: p.AssetName, Class: p.Class()}
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
