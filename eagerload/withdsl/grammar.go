package withdsl

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Lexer tokenizes with-spec expressions.
var Lexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},
	{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_]*`},
	{Name: "Punct", Pattern: `[:,(){}\[\]]`},
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// List is a comma separated group of loads.
type List struct {
	Pos   lexer.Position
	Items []*Item `parser:"( @@ ( \",\" @@ )* )?"`
}

// Item is one load: alias[:relation][(args)][{nested}].
type Item struct {
	Pos      lexer.Position
	Alias    string `parser:"@Ident"`
	Relation string `parser:"( \":\" @Ident )?"`
	Args     []*Arg `parser:"( \"(\" ( @@ ( \",\" @@ )* )? \")\" )?"`
	Nested   *List  `parser:"( \"{\" @@ \"}\" )?"`
}

// Arg is a named load option such as limit: 5.
type Arg struct {
	Pos   lexer.Position
	Name  string `parser:"@Ident \":\""`
	Value *Value `parser:"@@"`
}

// Value is a literal argument value.
type Value struct {
	Pos    lexer.Position
	String *string  `parser:"  @String"`
	Number *string  `parser:"| @Number"`
	Bool   *string  `parser:"| @( \"true\" | \"false\" )"`
	Null   bool     `parser:"| @\"null\""`
	Object []*Field `parser:"| \"{\" ( @@ ( \",\" @@ )* )? \"}\""`
	List   []*Value `parser:"| \"[\" ( @@ ( \",\" @@ )* )? \"]\""`
	Ident  *string  `parser:"| @Ident"`
}

// Field is a key/value pair inside an object value.
type Field struct {
	Pos   lexer.Position
	Key   string `parser:"( @Ident | @String ) \":\""`
	Value *Value `parser:"@@"`
}

var options = []participle.Option{
	participle.Lexer(Lexer),
	participle.Elide("Whitespace", "Comment"),
	participle.Unquote("String"),
	participle.UseLookahead(2),
}

var (
	parser       = participle.MustBuild[List](options...)
	filterParser = participle.MustBuild[Value](options...)
)
