package timeline_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/wavelength-chat/wavelength/pkg/client/timeline"
	"github.com/wavelength-chat/wavelength/pkg/domain/model"
	"github.com/wavelength-chat/wavelength/pkg/domain/types"
)

type fakeMessageAPI struct {
	listFn    func(channelID types.ChannelID, cursor *string) (*model.MessagePage, error)
	sendFn    func(msg *model.Message) (types.MessageID, error)
	deleteErr error
	listCalls atomic.Int32
}

func (f *fakeMessageAPI) List(ctx context.Context, channelID types.ChannelID, limit int, cursor *string) (*model.MessagePage, error) {
	f.listCalls.Add(1)
	if f.listFn == nil {
		return &model.MessagePage{Messages: nil, Pagination: model.Pagination{}}, nil
	}
	return f.listFn(channelID, cursor)
}

func (f *fakeMessageAPI) Send(ctx context.Context, msg *model.Message) (types.MessageID, error) {
	if f.sendFn == nil {
		return types.NewMessageID(), nil
	}
	return f.sendFn(msg)
}

func (f *fakeMessageAPI) Delete(ctx context.Context, channelID types.ChannelID, id types.MessageID) error {
	return f.deleteErr
}

func (f *fakeMessageAPI) ToggleReaction(ctx context.Context, channelID types.ChannelID, id types.MessageID, kind types.ReactionKind) error {
	return nil
}

func serverMessage(id types.MessageID, author types.UserID, content string, sentAt time.Time) *model.Message {
	return &model.Message{
		ID:          id,
		ChannelID:   "general",
		WorkspaceID: "ws1",
		Author:      model.User{ID: author, Username: string(author)},
		Content:     content,
		SentAt:      sentAt,
	}
}

func page(messages []*model.Message, nextCursor *string, hasMore bool) *model.MessagePage {
	return &model.MessagePage{
		Messages:   messages,
		Pagination: model.Pagination{NextCursor: nextCursor, HasMore: hasMore},
	}
}

func strPtr(s string) *string { return &s }

func newReady(t *testing.T, api *fakeMessageAPI, opts ...timeline.Option) *timeline.Timeline {
	t.Helper()
	self := model.User{ID: "me", Username: "me"}
	tl := timeline.New(api, self, "ws1", opts...)
	gt.NoError(t, tl.LoadInitial(context.Background(), "general", 50))
	return tl
}

func TestTimeline_LoadInitial(t *testing.T) {
	now := time.Now()
	api := &fakeMessageAPI{
		listFn: func(channelID types.ChannelID, cursor *string) (*model.MessagePage, error) {
			return page([]*model.Message{
				serverMessage("m1", "u1", "first", now),
				serverMessage("m2", "u2", "second", now.Add(time.Second)),
			}, strPtr("c1"), true), nil
		},
	}

	tl := newReady(t, api)

	gt.Value(t, tl.State()).Equal(timeline.StateReady)
	gt.Value(t, tl.ChannelID()).Equal(types.ChannelID("general"))
	snapshot := tl.Snapshot()
	gt.Array(t, snapshot).Length(2)
	gt.Value(t, snapshot[0].ID).Equal(types.MessageID("m1"))
	gt.B(t, tl.HasMore()).True()
}

func TestTimeline_StaleResponseSuppression(t *testing.T) {
	gateA := make(chan struct{})
	now := time.Now()
	api := &fakeMessageAPI{
		listFn: func(channelID types.ChannelID, cursor *string) (*model.MessagePage, error) {
			if channelID == "chanA" {
				<-gateA
				return page([]*model.Message{serverMessage("a1", "u1", "from A", now)}, nil, false), nil
			}
			return page([]*model.Message{serverMessage("b1", "u1", "from B", now)}, nil, false), nil
		},
	}
	self := model.User{ID: "me", Username: "me"}
	tl := timeline.New(api, self, "ws1")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		gt.NoError(t, tl.LoadInitial(context.Background(), "chanA", 50))
	}()

	// Switch channels while chanA's fetch is still in flight
	time.Sleep(20 * time.Millisecond)
	gt.NoError(t, tl.LoadInitial(context.Background(), "chanB", 50))
	close(gateA)
	wg.Wait()

	snapshot := tl.Snapshot()
	gt.Array(t, snapshot).Length(1)
	gt.Value(t, snapshot[0].ID).Equal(types.MessageID("b1"))
	gt.Value(t, tl.ChannelID()).Equal(types.ChannelID("chanB"))
}

func TestTimeline_LoadOlder(t *testing.T) {
	t.Run("nil cursor issues no network call", func(t *testing.T) {
		api := &fakeMessageAPI{
			listFn: func(channelID types.ChannelID, cursor *string) (*model.MessagePage, error) {
				return page(nil, nil, false), nil
			},
		}
		tl := newReady(t, api)
		before := tl.Snapshot()
		calls := api.listCalls.Load()

		gt.NoError(t, tl.LoadOlder(context.Background(), 50))

		gt.Value(t, api.listCalls.Load()).Equal(calls)
		gt.Value(t, tl.Snapshot()).Equal(before)
	})

	t.Run("prepends page and resets cursor on hasMore false", func(t *testing.T) {
		now := time.Now()
		api := &fakeMessageAPI{
			listFn: func(channelID types.ChannelID, cursor *string) (*model.MessagePage, error) {
				if cursor == nil {
					return page([]*model.Message{serverMessage("m3", "u1", "newest", now)}, strPtr("c1"), true), nil
				}
				gt.Value(t, *cursor).Equal("c1")
				return page([]*model.Message{
					serverMessage("m1", "u1", "oldest", now.Add(-2*time.Minute)),
					serverMessage("m2", "u1", "older", now.Add(-time.Minute)),
				}, strPtr("c2"), false), nil
			},
		}
		tl := newReady(t, api)

		gt.NoError(t, tl.LoadOlder(context.Background(), 50))

		snapshot := tl.Snapshot()
		gt.Array(t, snapshot).Length(3)
		gt.Value(t, snapshot[0].ID).Equal(types.MessageID("m1"))
		gt.Value(t, snapshot[1].ID).Equal(types.MessageID("m2"))
		gt.Value(t, snapshot[2].ID).Equal(types.MessageID("m3"))
		// hasMore:false forces cursor reset even though a cursor was returned
		gt.B(t, tl.HasMore()).False()
	})

	t.Run("overlapping loads are serialized", func(t *testing.T) {
		gate := make(chan struct{})
		now := time.Now()
		api := &fakeMessageAPI{
			listFn: func(channelID types.ChannelID, cursor *string) (*model.MessagePage, error) {
				if cursor == nil {
					return page([]*model.Message{serverMessage("m9", "u1", "newest", now)}, strPtr("c1"), true), nil
				}
				<-gate
				return page([]*model.Message{serverMessage("m1", "u1", "old", now.Add(-time.Hour))}, nil, false), nil
			},
		}
		tl := newReady(t, api)
		calls := api.listCalls.Load()

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			gt.NoError(t, tl.LoadOlder(context.Background(), 50))
		}()

		time.Sleep(20 * time.Millisecond)
		// Second call while the first is in flight: must be a no-op
		gt.NoError(t, tl.LoadOlder(context.Background(), 50))
		gt.Value(t, api.listCalls.Load()).Equal(calls + 1)

		close(gate)
		wg.Wait()
		gt.Array(t, tl.Snapshot()).Length(2)
	})
}

func TestTimeline_AppendLive(t *testing.T) {
	now := time.Now()

	t.Run("appends foreign messages only", func(t *testing.T) {
		tl := newReady(t, &fakeMessageAPI{})

		tl.AppendLive(serverMessage("m1", "u1", "hi", now))
		tl.AppendLive(serverMessage("m2", "me", "own echo", now))

		snapshot := tl.Snapshot()
		gt.Array(t, snapshot).Length(1)
		gt.Value(t, snapshot[0].ID).Equal(types.MessageID("m1"))
	})

	t.Run("ignores other channels and duplicates", func(t *testing.T) {
		tl := newReady(t, &fakeMessageAPI{})

		other := serverMessage("m1", "u1", "elsewhere", now)
		other.ChannelID = "random"
		tl.AppendLive(other)
		gt.Array(t, tl.Snapshot()).Length(0)

		msg := serverMessage("m2", "u1", "hi", now)
		tl.AppendLive(msg)
		tl.AppendLive(msg)
		gt.Array(t, tl.Snapshot()).Length(1)
	})
}

func TestTimeline_SendOptimistic(t *testing.T) {
	t.Run("round trip swaps temporary id exactly once", func(t *testing.T) {
		serverID := types.NewMessageID()
		var sent *model.Message
		api := &fakeMessageAPI{
			sendFn: func(msg *model.Message) (types.MessageID, error) {
				sent = msg
				return serverID, nil
			},
		}
		tl := newReady(t, api)

		id, err := tl.SendOptimistic(context.Background(), timeline.Draft{Content: "hello"})
		gt.NoError(t, err)
		gt.Value(t, id).Equal(serverID)
		gt.B(t, sent.ID.IsLocal()).True()

		snapshot := tl.Snapshot()
		gt.Array(t, snapshot).Length(1)
		gt.Value(t, snapshot[0].ID).Equal(serverID)
		gt.Value(t, snapshot[0].Content).Equal("hello")
		for _, msg := range snapshot {
			gt.B(t, msg.ID.IsLocal()).False()
		}
	})

	t.Run("failure keeps optimistic message visible", func(t *testing.T) {
		api := &fakeMessageAPI{
			sendFn: func(msg *model.Message) (types.MessageID, error) {
				return "", goerr.New("rejected")
			},
		}
		tl := newReady(t, api)

		tempID, err := tl.SendOptimistic(context.Background(), timeline.Draft{Content: "doomed"})
		gt.Value(t, err).NotNil()

		snapshot := tl.Snapshot()
		gt.Array(t, snapshot).Length(1)
		gt.Value(t, snapshot[0].ID).Equal(tempID)
		gt.B(t, snapshot[0].ID.IsLocal()).True()
	})

	t.Run("rejected before initial load", func(t *testing.T) {
		tl := timeline.New(&fakeMessageAPI{}, model.User{ID: "me"}, "ws1")
		_, err := tl.SendOptimistic(context.Background(), timeline.Draft{Content: "early"})
		gt.Error(t, err).Is(timeline.ErrNotReady)
	})
}

func TestTimeline_Delete(t *testing.T) {
	t.Run("removes locally even when the network delete fails", func(t *testing.T) {
		now := time.Now()
		api := &fakeMessageAPI{
			listFn: func(channelID types.ChannelID, cursor *string) (*model.MessagePage, error) {
				return page([]*model.Message{serverMessage("m1", "u1", "bye", now)}, nil, false), nil
			},
			deleteErr: goerr.New("forbidden"),
		}
		tl := newReady(t, api)

		err := tl.Delete(context.Background(), "m1")
		gt.Value(t, err).NotNil()
		gt.Array(t, tl.Snapshot()).Length(0)
	})
}

func TestTimeline_UpdateReactions(t *testing.T) {
	now := time.Now()
	api := &fakeMessageAPI{
		listFn: func(channelID types.ChannelID, cursor *string) (*model.MessagePage, error) {
			return page([]*model.Message{serverMessage("m1", "u1", "hello", now)}, nil, false), nil
		},
	}
	tl := newReady(t, api)

	reactions := map[types.ReactionKind][]types.UserID{"wave": {"u1", "u2"}}
	tl.UpdateReactions("m1", reactions)
	tl.UpdateReactions("missing", reactions) // no-op

	snapshot := tl.Snapshot()
	gt.Array(t, snapshot[0].Reactions["wave"]).Length(2)

	// Caller's map is copied, not aliased
	reactions["wave"][0] = "u9"
	gt.Value(t, tl.Snapshot()[0].Reactions["wave"][0]).Equal(types.UserID("u1"))
}

func TestTimeline_Entries_Grouping(t *testing.T) {
	now := time.Now()
	api := &fakeMessageAPI{
		listFn: func(channelID types.ChannelID, cursor *string) (*model.MessagePage, error) {
			reply := types.MessageID("m1")
			second := serverMessage("m2", "u1", "again", now.Add(30*time.Second))
			third := serverMessage("m3", "u1", "reply", now.Add(40*time.Second))
			third.ReplyTo = &reply
			return page([]*model.Message{
				serverMessage("m1", "u1", "hello", now),
				second,
				third,
				serverMessage("m4", "u2", "other author", now.Add(50*time.Second)),
			}, nil, false), nil
		},
	}
	tl := newReady(t, api)

	entries := tl.Entries()
	gt.Array(t, entries).Length(4)
	gt.B(t, entries[0].Grouped).False()
	gt.B(t, entries[1].Grouped).True()
	gt.B(t, entries[2].Grouped).False() // reply breaks the group
	gt.B(t, entries[3].Grouped).False()
}
