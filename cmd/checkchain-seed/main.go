// Command checkchain-seed prints a freshly mined, genesis-compatible
// block for manual smoke testing: run it, feed the printed data into a
// running node's POST /api/mine, and confirm the tip advances.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/minnehack/checkchain/pkg/chain"
)

func main() {
	data := flag.String("data", "manual smoke test", "data payload for the seeded block")
	flag.Parse()

	if len(*data) > 255 {
		fmt.Println("error: data exceeds 255 bytes")
		return
	}

	c := chain.New()
	b := c.MineAt(uint64(time.Now().Unix()), []byte(*data))

	fmt.Printf("index:     %d\n", b.Index)
	fmt.Printf("prev_hash: %s\n", b.PrevHash)
	fmt.Printf("timestamp: %d\n", b.Timestamp)
	fmt.Printf("data:      %q\n", b.Data)
	fmt.Printf("hash:      %s\n", b.Hash)
}
