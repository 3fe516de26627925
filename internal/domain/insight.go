package domain

import (
	"fmt"
	"strings"
)

// Speakers of an insights conversation
const (
	ChatRoleUser  = "user"
	ChatRoleModel = "model"
)

// ChatTurn is one earlier message of an insights conversation
type ChatTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Validate reports a turn with an unknown speaker or no text
func (t ChatTurn) Validate() error {
	if t.Role != ChatRoleUser && t.Role != ChatRoleModel {
		return fmt.Errorf("%w: role %q", ErrInvalidHistory, t.Role)
	}
	if strings.TrimSpace(t.Text) == "" {
		return fmt.Errorf("%w: empty %s turn", ErrInvalidHistory, t.Role)
	}
	return nil
}

// MarketSource is a web page a market insight was grounded on
type MarketSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// MarketInsight is a search-grounded trend report for one niche
type MarketInsight struct {
	Niche   string         `json:"niche"`
	Text    string         `json:"text"`
	Sources []MarketSource `json:"sources"`
}
