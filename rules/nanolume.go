//go:build ruleguard

// Package gorules contains ruleguard checks run by golangci-lint.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo flags goroutines paired with manual Done calls.
//
//	wg.Go(func() {
//	    results[i] = engine.Simulate(ctx, in)
//	})
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`go func() { defer $wg.Done(); $*_ }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(func() { ... }) instead of go func() { defer $wg.Done(); ... }()").
		Suggest("$wg.Go(func() { $*_ })")

	m.Match(`go func() { $*_; $wg.Done() }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(func() { ... }) instead of a trailing $wg.Done()")
}

// StdlibLogInInternal flags the standard logger inside internal packages,
// which must log through internal/logger so output respects the configured
// level and format.
func StdlibLogInInternal(m dsl.Matcher) {
	m.Import("log")

	m.Match(`log.Printf($*_)`, `log.Println($*_)`, `log.Print($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/`)).
		Report("use logger.Global().Module(...) instead of the standard log package")

	m.Match(`log.Fatalf($*_)`, `log.Fatal($*_)`, `log.Fatalln($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/`)).
		Report("return an error instead of exiting from an internal package")
}

// GlobalRandInLattice flags the package-level generator in the lattice
// package. Dopant placement must draw from the generator seeded by
// Options.Seed to stay reproducible.
func GlobalRandInLattice(m dsl.Matcher) {
	m.Import("math/rand/v2")

	m.Match(`rand.Float64()`, `rand.IntN($_)`, `rand.Uint64()`, `rand.Shuffle($*_)`, `rand.Perm($_)`).
		Where(m.File().PkgPath.Matches(`/internal/lattice$`)).
		Report("use the seeded *rand.Rand instead of the global generator")

	m.Match(`rand.Seed($_)`).
		Report("math/rand.Seed is deprecated; build a generator with rand.New(rand.NewPCG(seed, ...))")
}

// ClampWithBuiltins suggests the min and max builtins for integer clamps.
func ClampWithBuiltins(m dsl.Matcher) {
	m.Match(`int(math.Min(float64($a), float64($b)))`).
		Report("use min($a, $b)").
		Suggest("min($a, $b)")

	m.Match(`int(math.Max(float64($a), float64($b)))`).
		Report("use max($a, $b)").
		Suggest("max($a, $b)")
}

// EmptyInterface suggests any over interface{}.
func EmptyInterface(m dsl.Matcher) {
	m.Match(`interface{}`).
		Report("use any instead of interface{}").
		Suggest("any")
}

// EchoPlainTextErrors flags plain-text error bodies in API handlers, which
// must use the JSON error envelope.
func EchoPlainTextErrors(m dsl.Matcher) {
	m.Match(`$c.String($code, $*_)`).
		Where(m["c"].Type.Is("echo.Context") &&
			m.File().PkgPath.Matches(`/internal/api/v2$`) &&
			!m.File().Name.Matches(`_test\.go$`)).
		Report("return the JSON error response instead of $c.String")
}
