/*
Package gring implements a high-throughput, low-latency inter-goroutine event
exchange built around a pre-allocated ring buffer coordinated by monotonic
64-bit sequence counters.

Events live in fixed slots created once at construction and mutated in place,
so the hot path allocates nothing. Producers claim sequences from a Sequencer
(single- or multi-producer), fill the slot the sequence maps to, and publish;
consumers wait on a SequenceBarrier, which hands out only contiguous runs of
published sequences and feeds each consumer's own Sequence back to the
producers as back-pressure.

The minimal producer/consumer round trip:

	type priceEvent struct {
		symbol string
		price  float64
	}

	rb, err := gring.NewRingBuffer[priceEvent](func() priceEvent { return priceEvent{} }, 1024)
	if err != nil {
		log.Fatal(err)
	}

	consumer := gring.NewSequence(gring.InitialSequenceValue)
	rb.AddGatingSequences(consumer)
	barrier := rb.NewBarrier()

	go func() {
		next := consumer.Get() + 1
		for {
			available, err := barrier.WaitFor(next)
			if err != nil {
				return
			}
			for ; next <= available; next++ {
				e := rb.Get(next)
				fmt.Println(e.symbol, e.price)
			}
			consumer.Set(available)
		}
	}()

	_ = rb.PublishEvent(func(e *priceEvent, sequence int64) error {
		e.symbol, e.price = "ACME", 42.0
		return nil
	})

For anything beyond a hand-rolled loop, the Disruptor type wires handler
chains onto a worker pool and manages the gating sequences itself.
*/
package gring
