package hubtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/kbirk/runnerbot/pkg/hub"
)

// Call identifies one call made by WriteConcurrently.
type Call struct {
	Writer int `json:"writer"`
	Seq    int `json:"seq"`
}

// WriteConcurrently starts writers goroutines that each make perWriter calls
// of method on client, alternating Send and Invoke. Invoke results must echo
// the call back.
func WriteConcurrently(ctx context.Context, client *hub.Client, method string, writers int, perWriter int) error {
	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seq := 0; seq < perWriter; seq++ {
				call := Call{Writer: w, Seq: seq}
				if seq%2 == 0 {
					errs <- client.Send(ctx, method, call)
					continue
				}
				raw, err := client.Invoke(ctx, method, call)
				if err == nil {
					var echoed Call
					err = json.Unmarshal(raw, &echoed)
					if err == nil && echoed != call {
						err = fmt.Errorf("completion for %+v echoed %+v", call, echoed)
					}
				}
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	var all []error
	for err := range errs {
		if err != nil {
			all = append(all, err)
		}
	}
	return errors.Join(all...)
}

// VerifyCalls checks that msgs hold every call of WriteConcurrently exactly
// once, each as a whole invocation of method.
func VerifyCalls(msgs []*hub.Message, method string, writers int, perWriter int) error {
	if len(msgs) != writers*perWriter {
		return fmt.Errorf("got %d invocations, want %d", len(msgs), writers*perWriter)
	}
	seen := make(map[Call]bool, len(msgs))
	for _, msg := range msgs {
		if msg.Target != method || len(msg.Arguments) != 1 {
			return fmt.Errorf("unexpected invocation of %q with %d arguments", msg.Target, len(msg.Arguments))
		}
		var call Call
		err := json.Unmarshal(msg.Arguments[0], &call)
		if err != nil {
			return fmt.Errorf("argument %s: %w", msg.Arguments[0], err)
		}
		if call.Writer < 0 || call.Writer >= writers || call.Seq < 0 || call.Seq >= perWriter {
			return fmt.Errorf("unexpected call %+v", call)
		}
		if seen[call] {
			return fmt.Errorf("call %+v written twice", call)
		}
		if (msg.InvocationID != "") != (call.Seq%2 == 1) {
			return fmt.Errorf("call %+v has invocation id %q", call, msg.InvocationID)
		}
		seen[call] = true
	}
	return nil
}
