// network/protocol.go
package network

import (
	"github.com/wfunc/chessrelay/rules"
)

// Message type discriminators. The wire contract is permissive: inbound
// frames with an unknown type are ignored rather than rejected.
const (
	TypeNew          = "new"
	TypeJoin         = "join"
	TypeInit         = "init"
	TypeHover        = "hover"
	TypeSelect       = "select"
	TypePlay         = "play"
	TypeResize       = "resize"
	TypePromotion    = "promotion"
	TypeClear        = "clear"
	TypeWin          = "win"
	TypeDraw         = "draw"
	TypeNotYourTurn  = "notYourTurn"
	TypeBadRequest   = "bad request"
	TypeInvalidURL   = "invalid url"
	TypeFull         = "full"
	TypeError        = "error"
	TypeReconnecting = "reconnecting"
	TypePlayerJoined = "player joined"
	TypeDisconnected = "opponent disconnected"
)

const (
	// BadRequestURL is where clients are redirected on a malformed join.
	BadRequestURL = "./?badRequest=true"
	HomeURL       = "./"
)

// JoinURL builds the shareable link embedding a join key.
func JoinURL(key string) string {
	return "./chess.html?join=" + key
}

// ClientMessage is the inbound envelope. Fields are pointers where their
// presence matters: a frame carrying a "join" field is a join request even
// when the key is empty, and gameplay fields must be distinguishable from
// zero squares.
type ClientMessage struct {
	Type         string  `json:"type"`
	Join         *string `json:"join,omitempty"`
	Reconnecting bool    `json:"reconnecting,omitempty"`
	Square       *int    `json:"square,omitempty"`
	Player       *bool   `json:"player,omitempty"`
	StartSquare  *int    `json:"start square,omitempty"`
	EndSquare    *int    `json:"end square,omitempty"`
	Piece        string  `json:"piece,omitempty"`
}

// --- outbound messages ---

// New acknowledges game creation with the shareable join link.
type New struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type Redirect struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	URL     string `json:"url"`
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Reconnecting struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	URL     string `json:"url,omitempty"`
	Join    string `json:"join,omitempty"`
}

// Init is the full snapshot a joining player needs to render the game.
// Winner is -1 while the game is live, a color bool once decided.
type Init struct {
	Type           string          `json:"type"`
	Join           string          `json:"join"`
	Board          string          `json:"board"`
	Player         bool            `json:"player"`
	LastMove       *rules.LastMove `json:"last move"`
	Turn           bool            `json:"turn"`
	Check          bool            `json:"check"`
	Finished       bool            `json:"finished"`
	FinishedReason string          `json:"finished reason"`
	Winner         interface{}     `json:"winner"`
}

type PlayerJoined struct {
	Type     string          `json:"type"`
	Board    string          `json:"board"`
	Full     bool            `json:"full"`
	LastMove *rules.LastMove `json:"last move"`
}

// Select answers a hover or select with the legal destinations from a
// square. Type echoes the request so the client routes it back.
type Select struct {
	Type           string              `json:"type"`
	Square         int                 `json:"square"`
	Piece          string              `json:"piece"`
	AvailableMoves []rules.Destination `json:"available moves"`
}

type NotYourTurn struct {
	Type string `json:"type"`
}

// Promotion prompts the moving player for a piece choice; the next inbound
// frame from that connection is taken as the reply.
type Promotion struct {
	Type string `json:"type"`
}

// Play announces an applied move. ContributeTurn is set (false) only on the
// auxiliary rook relocation of a castle, which must not advance the turn on
// the client; Check travels only on the principal move.
type Play struct {
	Type           string `json:"type"`
	StartSquare    int    `json:"start square"`
	EndSquare      int    `json:"end square"`
	Piece          string `json:"piece"`
	Check          *bool  `json:"check,omitempty"`
	ContributeTurn *bool  `json:"contribute turn,omitempty"`
}

// Clear removes a piece from a square that is not a move destination; only
// en passant captures need it.
type Clear struct {
	Type  string `json:"type"`
	Piece int    `json:"piece"`
}

type Win struct {
	Type   string `json:"type"`
	Winner bool   `json:"winner"`
}

type Draw struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type Disconnected struct {
	Type     string          `json:"type"`
	Board    string          `json:"board"`
	Finished bool            `json:"finished"`
	LastMove *rules.LastMove `json:"last move"`
}

type Resize struct {
	Type  string `json:"type"`
	Board string `json:"board"`
}
