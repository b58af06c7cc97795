package ast

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeRefDisplay(t *testing.T) {
	require.Equal(t, "Int", TypeRef{Name: "Int"}.String())

	pair := TypeRef{
		Name: "Pair",
		Args: []TypeArg{
			{Kind: TypeArgType, Type: &TypeRef{Name: "Int"}},
			{Kind: TypeArgType, Type: &TypeRef{Name: "Bool"}},
		},
	}
	require.Equal(t, "Pair<Int, Bool>", pair.String())

	net := TypeRef{
		Name: "Net",
		Args: []TypeArg{{Kind: TypeArgString, String: "api.openai.com"}},
	}
	require.Equal(t, `Net<"api.openai.com">`, net.String())
}

func TestTypeRefHead(t *testing.T) {
	require.Equal(t, "Model", TypeRef{Name: "Model"}.Head())
}
