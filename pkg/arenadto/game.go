package arenadto

import (
	"time"

	"github.com/park285/cheese-arena/internal/domain"
)

type ClockView struct {
	WhiteMs       int64     `json:"w"`
	BlackMs       int64     `json:"b"`
	IncrementMs   int64     `json:"incrementMs,omitempty"`
	TurnStartedAt time.Time `json:"turnStartedAt"`
	Running       bool      `json:"running"`
}

type MaterialScore struct {
	White int `json:"w"`
	Black int `json:"b"`
}

// CapturedPieces lists piece letters each side has taken, in capture order.
type CapturedPieces struct {
	White []string `json:"w"`
	Black []string `json:"b"`
}

type MoveView struct {
	Ply       int          `json:"ply"`
	Source    string       `json:"source"`
	Target    string       `json:"target"`
	Promotion string       `json:"promotion,omitempty"`
	UCI       string       `json:"uci"`
	SAN       string       `json:"san"`
	MoverID   string       `json:"moverId"`
	Color     domain.Color `json:"color"`
	Timestamp time.Time    `json:"timestamp"`
	ElapsedMs int64        `json:"elapsedMs"`
}

// Conclusion carries the termination reason; an empty Victor is a draw.
type Conclusion struct {
	Termination string       `json:"termination"`
	Victor      domain.Color `json:"victor,omitempty"`
	VictorID    string       `json:"victorId,omitempty"`
}

type GameSnapshot struct {
	ID         string         `json:"id"`
	White      domain.Player  `json:"white"`
	Black      domain.Player  `json:"black"`
	FEN        string         `json:"fen"`
	Turn       domain.Color   `json:"turn"`
	Status     string         `json:"status"`
	Clocks     *ClockView     `json:"clocks,omitempty"`
	Moves      []MoveView     `json:"moves"`
	Captured   CapturedPieces `json:"captured"`
	Material   MaterialScore  `json:"material"`
	Conclusion *Conclusion    `json:"conclusion,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

type GameMoved struct {
	Move     MoveView     `json:"move"`
	Snapshot GameSnapshot `json:"snapshot"`
}

type GameEnded struct {
	GameID     string       `json:"gameId"`
	Conclusion Conclusion   `json:"conclusion"`
	Snapshot   GameSnapshot `json:"snapshot"`
}
