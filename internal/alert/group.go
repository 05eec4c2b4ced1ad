package alert

import (
	"strings"

	"cryptoalert/internal/models"
)

// Groups partitions alerts by resource key. Keys keeps first-seen order and
// each group keeps input order, so iteration is stable for a given input.
type Groups struct {
	Keys  []string
	ByKey map[string][]models.Alert
}

func GroupByResource(items []models.Alert) Groups {
	g := Groups{
		Keys:  make([]string, 0, len(items)),
		ByKey: make(map[string][]models.Alert, len(items)),
	}
	for _, a := range items {
		key := strings.TrimSpace(a.ResourceKey)
		if key == "" {
			continue
		}
		if _, ok := g.ByKey[key]; !ok {
			g.Keys = append(g.Keys, key)
		}
		g.ByKey[key] = append(g.ByKey[key], a)
	}
	return g
}

// Size is the number of alerts held across all groups.
func (g Groups) Size() int {
	n := 0
	for _, items := range g.ByKey {
		n += len(items)
	}
	return n
}
