package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wegman-software/addrmerge/internal/logger"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// LuaNormalizer delegates to a user script defining the global functions
// map_street(name, sym_ul) and map_city(name, simc). A function that is
// not defined, or returns nil, leaves the value unchanged.
//
// A single Lua state is shared and calls are serialized.
type LuaNormalizer struct {
	L  *lua.LState
	mu sync.Mutex

	mapStreet lua.LValue
	mapCity   lua.LValue
}

// NewLuaNormalizer creates a Lua state with the string helpers registered
func NewLuaNormalizer() *LuaNormalizer {
	n := &LuaNormalizer{L: lua.NewState()}
	n.registerAPI()
	return n
}

// Close releases Lua resources
func (n *LuaNormalizer) Close() {
	n.L.Close()
}

func (n *LuaNormalizer) registerAPI() {
	helpers := n.L.NewTable()
	n.L.SetField(helpers, "trim", n.L.NewFunction(luaTrim))
	n.L.SetField(helpers, "upper", n.L.NewFunction(luaUpper))
	n.L.SetField(helpers, "lower", n.L.NewFunction(luaLower))
	n.L.SetField(helpers, "clean_spaces", n.L.NewFunction(luaCleanSpaces))
	n.L.SetField(helpers, "starts_with", n.L.NewFunction(luaStartsWith))
	n.L.SetGlobal("addr", helpers)

	n.L.SetGlobal("print", n.L.NewFunction(luaPrint))
}

// LoadFile loads and executes a normalizer script
func (n *LuaNormalizer) LoadFile(path string) error {
	if err := n.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to load Lua file: %w", err)
	}
	n.extractCallbacks()
	return nil
}

// LoadString loads and executes normalizer code from a string
func (n *LuaNormalizer) LoadString(code string) error {
	if err := n.L.DoString(code); err != nil {
		return fmt.Errorf("failed to load Lua code: %w", err)
	}
	n.extractCallbacks()
	return nil
}

func (n *LuaNormalizer) extractCallbacks() {
	n.mapStreet = n.L.GetGlobal("map_street")
	n.mapCity = n.L.GetGlobal("map_city")
}

func (n *LuaNormalizer) Street(name, symUl string) string {
	return n.call(n.mapStreet, name, symUl)
}

func (n *LuaNormalizer) City(name, simc string) string {
	return n.call(n.mapCity, name, simc)
}

func (n *LuaNormalizer) call(fn lua.LValue, name, code string) string {
	if fn == nil || fn.Type() != lua.LTFunction {
		return name
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	err := n.L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, lua.LString(name), lua.LString(code))
	if err != nil {
		logger.Get().Warn("Lua normalizer failed", zap.String("value", name), zap.Error(err))
		return name
	}

	ret := n.L.Get(-1)
	n.L.Pop(1)
	if s, ok := ret.(lua.LString); ok {
		return string(s)
	}
	return name
}

func luaTrim(L *lua.LState) int {
	L.Push(lua.LString(strings.TrimSpace(L.CheckString(1))))
	return 1
}

func luaUpper(L *lua.LState) int {
	L.Push(lua.LString(strings.ToUpper(L.CheckString(1))))
	return 1
}

func luaLower(L *lua.LState) int {
	L.Push(lua.LString(strings.ToLower(L.CheckString(1))))
	return 1
}

// luaCleanSpaces collapses runs of whitespace and trims
func luaCleanSpaces(L *lua.LState) int {
	s := whitespaceRegex.ReplaceAllString(L.CheckString(1), " ")
	L.Push(lua.LString(strings.TrimSpace(s)))
	return 1
}

// luaStartsWith compares case-insensitively
func luaStartsWith(L *lua.LState) int {
	s, prefix := L.CheckString(1), L.CheckString(2)
	L.Push(lua.LBool(strings.HasPrefix(strings.ToUpper(s), strings.ToUpper(prefix))))
	return 1
}

func luaPrint(L *lua.LState) int {
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	logger.Get().Info("[lua] " + strings.Join(parts, "\t"))
	return 0
}
