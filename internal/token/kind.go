package token

// Kind represents the category of a source token.
type Kind uint8

const (
	// Invalid indicates an erroneous token.
	Invalid Kind = iota
	// EOF marks the end of the source input.
	EOF

	Ident
	Number

	KwFunc   // \func
	KwLemma  // \lemma
	KwData   // \data
	KwWhere  // \where
	KwImport // \import
	KwOpen   // \open
	KwLam    // \lam
	KwLet    // \let
	KwIn     // \in
	KwPi     // \Pi
	KwType   // \Type

	LParen    // (
	RParen    // )
	LBrace    // {
	RBrace    // }
	Goal      // {?}
	Colon     // :
	FatArrow  // =>
	Arrow     // ->
	Pipe      // |
	Dot       // .
	Comma     // ,
	Backslash // \ followed by an unknown word
)

var kindNames = [...]string{
	Invalid:   "invalid",
	EOF:       "end of file",
	Ident:     "identifier",
	Number:    "number",
	KwFunc:    `\func`,
	KwLemma:   `\lemma`,
	KwData:    `\data`,
	KwWhere:   `\where`,
	KwImport:  `\import`,
	KwOpen:    `\open`,
	KwLam:     `\lam`,
	KwLet:     `\let`,
	KwIn:      `\in`,
	KwPi:      `\Pi`,
	KwType:    `\Type`,
	LParen:    "(",
	RParen:    ")",
	LBrace:    "{",
	RBrace:    "}",
	Goal:      "{?}",
	Colon:     ":",
	FatArrow:  "=>",
	Arrow:     "->",
	Pipe:      "|",
	Dot:       ".",
	Comma:     ",",
	Backslash: `\`,
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}
