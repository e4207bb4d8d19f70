package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for body behaviour hooks.
// Single-goroutine access only (tick loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger

	steer     lua.LValue
	onContact lua.LValue
}

// NewEngine creates a Lua engine and loads all scripts from the given
// directory: scriptsDir/core first, then scriptsDir itself.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	vm.SetGlobal("log", vm.NewFunction(e.luaLog))

	for _, dir := range []string{filepath.Join(scriptsDir, "core"), scriptsDir} {
		if err := e.loadDir(dir); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load scripts: %w", err)
		}
	}

	e.steer = e.hook("steer")
	e.onContact = e.hook("on_contact")
	return e, nil
}

func (e *Engine) hook(name string) lua.LValue {
	fn := e.vm.GetGlobal(name)
	if fn.Type() != lua.LTFunction {
		return nil
	}
	e.log.Info("lua hook registered", zap.String("hook", name))
	return fn
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// luaLog lets scripts write to the run log: log("message").
func (e *Engine) luaLog(L *lua.LState) int {
	e.log.Info("lua", zap.String("msg", L.CheckString(1)))
	return 0
}

// SetBounds publishes the world bounds to scripts as the WORLD table.
func (e *Engine) SetBounds(minX, minY, maxX, maxY float64) {
	t := e.vm.NewTable()
	t.RawSetString("min_x", lua.LNumber(minX))
	t.RawSetString("min_y", lua.LNumber(minY))
	t.RawSetString("max_x", lua.LNumber(maxX))
	t.RawSetString("max_y", lua.LNumber(maxY))
	e.vm.SetGlobal("WORLD", t)
}

// BodyContext is the view of a body handed to Lua hooks.
type BodyContext struct {
	ID            uint64
	Kind          string
	X, Y          float64
	Width, Height float64
	VX, VY        float64
	Tick          uint64
}

func (e *Engine) bodyTable(b BodyContext) *lua.LTable {
	t := e.vm.NewTable()
	t.RawSetString("id", lua.LNumber(b.ID))
	t.RawSetString("kind", lua.LString(b.Kind))
	t.RawSetString("x", lua.LNumber(b.X))
	t.RawSetString("y", lua.LNumber(b.Y))
	t.RawSetString("width", lua.LNumber(b.Width))
	t.RawSetString("height", lua.LNumber(b.Height))
	t.RawSetString("vx", lua.LNumber(b.VX))
	t.RawSetString("vy", lua.LNumber(b.VY))
	t.RawSetString("tick", lua.LNumber(b.Tick))
	return t
}

// HasSteer reports whether a steer hook is loaded.
func (e *Engine) HasSteer() bool { return e.steer != nil }

// HasOnContact reports whether an on_contact hook is loaded.
func (e *Engine) HasOnContact() bool { return e.onContact != nil }

// Steer calls steer(body) and returns the new velocity. ok is false when
// there is no hook, the hook failed, or it returned nil.
func (e *Engine) Steer(b BodyContext) (vx, vy float64, ok bool) {
	if e.steer == nil {
		return b.VX, b.VY, false
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      e.steer,
		NRet:    2,
		Protect: true,
	}, e.bodyTable(b)); err != nil {
		e.log.Error("lua steer error", zap.Error(err), zap.Uint64("body", b.ID))
		return b.VX, b.VY, false
	}
	rx, ry := e.vm.Get(-2), e.vm.Get(-1)
	e.vm.Pop(2)
	if rx == lua.LNil {
		return b.VX, b.VY, false
	}
	return float64(lua.LVAsNumber(rx)), float64(lua.LVAsNumber(ry)), true
}

// OnContact calls on_contact(a, b). It returns true when the script asks
// for b to be despawned.
func (e *Engine) OnContact(a, b BodyContext) (despawnB bool) {
	if e.onContact == nil {
		return false
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      e.onContact,
		NRet:    1,
		Protect: true,
	}, e.bodyTable(a), e.bodyTable(b)); err != nil {
		e.log.Error("lua on_contact error", zap.Error(err), zap.Uint64("a", a.ID), zap.Uint64("b", b.ID))
		return false
	}
	result := e.vm.Get(-1)
	e.vm.Pop(1)
	return lua.LVAsBool(result)
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
