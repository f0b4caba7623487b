package token

var keywords = map[string]Kind{
	"func":   KwFunc,
	"lemma":  KwLemma,
	"data":   KwData,
	"where":  KwWhere,
	"import": KwImport,
	"open":   KwOpen,
	"lam":    KwLam,
	"let":    KwLet,
	"in":     KwIn,
	"Pi":     KwPi,
	"Type":   KwType,
}

// LookupKeyword resolves the word after a backslash. Keywords are case-sensitive.
func LookupKeyword(word string) (Kind, bool) {
	k, ok := keywords[word]
	return k, ok
}
