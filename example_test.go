package tinywasm

import (
	"context"
	"fmt"
	"log"
)

// Example shows the basic usage of this package: compiling and instantiating a WebAssembly module
// that exports one function, then calling it.
func Example() {
	ctx := context.Background()

	r := NewRuntime()
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, []byte(addWat))
	if err != nil {
		log.Fatal(err)
	}

	mod, err := r.InstantiateModule(ctx, compiled, NewModuleConfig().WithName("math"))
	if err != nil {
		log.Fatal(err)
	}

	add := mod.ExportedFunction("add")

	x, y := uint64(1), uint64(2)
	results, err := add.Call(ctx, x, y)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%s: %d + %d = %d\n", mod.Name(), x, y, results[0])

	// Output:
	// math: 1 + 2 = 3
}
