// Package domain contains core domain types for the wargame facilitator.
package domain

import (
	"fmt"
	"strings"
)

// Player is a participant with an assigned role. Players are created by
// role assignment and never mutated afterwards.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// String renders the player the way prompts refer to them.
func (p Player) String() string {
	if p.Role == "" {
		return p.Name
	}
	return fmt.Sprintf("%s (%s)", p.Name, p.Role)
}

// ParseRoles parses one "name: role" assignment per line.
// Blank lines are skipped. The player ID is the lowercased name.
func ParseRoles(text string) ([]Player, error) {
	var players []Player
	seen := make(map[string]bool)
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, role, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		role = strings.TrimSpace(role)
		if !ok || name == "" || role == "" {
			return nil, fmt.Errorf("line %d: expected \"name: role\", got %q", i+1, line)
		}
		id := strings.ToLower(name)
		if seen[id] {
			return nil, fmt.Errorf("line %d: duplicate player %q", i+1, name)
		}
		seen[id] = true
		players = append(players, Player{ID: id, Name: name, Role: role})
	}
	if len(players) == 0 {
		return nil, fmt.Errorf("no role assignments given")
	}
	return players, nil
}
