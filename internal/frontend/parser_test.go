package frontend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleFunction(t *testing.T) {
	src := `fn f(a: i32) -> i32 {
  let b: i32 = 1;
  let c: i32 = a + b;
  return c;
}`
	prog, errs := ParseSource(src)
	require.Empty(t, errs, "should have no parse errors")
	require.Len(t, prog.Functions, 1)

	fn := prog.Functions[0]
	assert.Equal(t, "f", fn.Name)
	assert.Len(t, fn.Parameters, 1)
	assert.Equal(t, "i32", fn.ReturnType.Name)
	assert.Len(t, fn.Body, 3)
}

func TestParseIfWhileAndFieldAccess(t *testing.T) {
	src := `struct Point { x: i32, y: i32 }
fn g(p: Point) -> i32 {
  let i: i32 = 0;
  while i < p.x {
    i = i + 1;
  }
  if i == p.y {
    return 1;
  } else {
    return 0;
  }
}`
	prog, errs := ParseSource(src)
	require.Empty(t, errs, "should have no parse errors")
	require.Len(t, prog.Structs, 1)
	assert.Len(t, prog.Structs[0].Fields, 2)

	fn := prog.Functions[0]
	whileStmt, ok := fn.Body[1].(*WhileStmt)
	require.True(t, ok, "expected a while statement, got %T", fn.Body[1])

	cond, ok := whileStmt.Cond.(*BinaryExpr)
	require.True(t, ok, "expected a binary condition, got %+v", whileStmt.Cond)
	assert.Equal(t, "<", cond.Op)

	_, ok = cond.Right.(*FieldExpr)
	assert.True(t, ok, "expected field access on the right of <, got %+v", cond.Right)
}

func TestParsePrecedence(t *testing.T) {
	src := `fn h() -> i32 { return 1 + 2 * 3; }`
	prog, errs := ParseSource(src)
	require.Empty(t, errs, "should have no parse errors")

	ret := prog.Functions[0].Body[0].(*ReturnStmt)
	add, ok := ret.Value.(*BinaryExpr)
	require.True(t, ok, "expected top-level '+', got %+v", ret.Value)
	assert.Equal(t, "+", add.Op)

	_, ok = add.Right.(*BinaryExpr)
	assert.True(t, ok, "expected '*' to bind tighter than '+', got %+v", add.Right)
}
