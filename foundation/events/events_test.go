package events_test

import (
	"testing"

	"github.com/calderaledger/caldera/foundation/events"
)

// Success and failure markers.
const (
	success = "✓"
	failed  = "✗"
)

// =============================================================================

func Test_Events(t *testing.T) {
	t.Log("Given the need to fan node events out to registered clients.")
	{
		t.Logf("\tTest 0:\tWhen sending to two registered clients.")
		{
			evts := events.New()
			defer evts.Shutdown()

			ch1 := evts.Acquire("client1")
			ch2 := evts.Acquire("client2")

			evts.Send("block accepted")

			for testID, ch := range []chan string{ch1, ch2} {
				select {
				case msg := <-ch:
					if msg != "block accepted" {
						t.Errorf("\t%s\tTest 0:\tShould deliver the message to client %d. got %q", failed, testID, msg)
					} else {
						t.Logf("\t%s\tTest 0:\tShould deliver the message to client %d.", success, testID)
					}
				default:
					t.Errorf("\t%s\tTest 0:\tShould deliver the message to client %d.", failed, testID)
				}
			}
		}

		t.Logf("\tTest 1:\tWhen acquiring the same id twice.")
		{
			evts := events.New()
			defer evts.Shutdown()

			ch1 := evts.Acquire("client1")
			ch2 := evts.Acquire("client1")

			if ch1 != ch2 {
				t.Errorf("\t%s\tTest 1:\tShould return the same channel.", failed)
			} else {
				t.Logf("\t%s\tTest 1:\tShould return the same channel.", success)
			}
		}

		t.Logf("\tTest 2:\tWhen releasing a client.")
		{
			evts := events.New()
			defer evts.Shutdown()

			ch := evts.Acquire("client1")

			if err := evts.Release("client1"); err != nil {
				t.Fatalf("\t%s\tTest 2:\tShould release a registered id: %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould release a registered id.", success)

			if _, open := <-ch; open {
				t.Errorf("\t%s\tTest 2:\tShould close the released channel.", failed)
			} else {
				t.Logf("\t%s\tTest 2:\tShould close the released channel.", success)
			}

			if err := evts.Release("client1"); err == nil {
				t.Errorf("\t%s\tTest 2:\tShould refuse releasing an unknown id.", failed)
			} else {
				t.Logf("\t%s\tTest 2:\tShould refuse releasing an unknown id.", success)
			}
		}

		t.Logf("\tTest 3:\tWhen a receiver's buffer is full.")
		{
			evts := events.New()
			defer evts.Shutdown()

			evts.Acquire("slow")

			// The buffer holds 100 messages; the rest are dropped, never
			// blocking the sender.
			for i := 0; i < 200; i++ {
				evts.Send("event")
			}
			t.Logf("\t%s\tTest 3:\tShould never block the sender.", success)
		}
	}
}
