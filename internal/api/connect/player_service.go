package connect

import (
	"context"
	"math"
	"net/http"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/spinbox/internal/app/notification"
	"github.com/osa030/spinbox/internal/app/player"
	"github.com/osa030/spinbox/internal/app/timer"
)

const (
	// PlayerServiceName is the fully-qualified name of the player service.
	PlayerServiceName = "spinbox.player.v1.PlayerService"

	GetStatusProcedure = "/" + PlayerServiceName + "/GetStatus"
	ControlProcedure   = "/" + PlayerServiceName + "/Control"
	SubscribeProcedure = "/" + PlayerServiceName + "/Subscribe"
)

// PlayerService exposes a player session over Connect.
// Messages are well-known protobuf types, so no generated code is needed.
type PlayerService struct {
	session       *player.Session
	notifications *notification.Manager
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(session *player.Session, notifications *notification.Manager) *PlayerService {
	return &PlayerService{
		session:       session,
		notifications: notifications,
	}
}

// NewHandler returns the service path and handler. Control requires adminToken.
func (s *PlayerService) NewHandler(adminToken string, opts ...connect.HandlerOption) (string, http.Handler) {
	controlOpts := append([]connect.HandlerOption{
		connect.WithInterceptors(NewAdminAuthInterceptor(adminToken)),
	}, opts...)

	mux := http.NewServeMux()
	mux.Handle(GetStatusProcedure, connect.NewUnaryHandler(GetStatusProcedure, s.GetStatus, opts...))
	mux.Handle(ControlProcedure, connect.NewUnaryHandler(ControlProcedure, s.Control, controlOpts...))
	mux.Handle(SubscribeProcedure, connect.NewServerStreamHandler(SubscribeProcedure, s.Subscribe, opts...))
	return "/" + PlayerServiceName + "/", mux
}

// GetStatus returns the current session status.
func (s *PlayerService) GetStatus(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	status, err := statusStruct(s.session.Status())
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(status), nil
}

// Control runs a player command: {"command": "...", "value": ...}.
func (s *PlayerService) Control(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	command := req.Msg.GetFields()["command"].GetStringValue()
	value := req.Msg.GetFields()["value"]

	var err error
	switch command {
	case "play":
		err = s.session.Play(ctx)
	case "pause":
		err = s.session.Pause(ctx)
	case "toggle":
		err = s.session.Toggle(ctx)
	case "next":
		err = s.session.Next(ctx)
	case "previous":
		err = s.session.Previous(ctx)
	case "jump":
		err = s.session.Jump(ctx, intValue(value))
	case "seek":
		err = s.session.Seek(ctx, intValue(value))
	case "skip":
		err = s.session.Skip(ctx, intValue(value))
	case "volume":
		err = s.session.SetVolume(ctx, value.GetNumberValue())
	case "timer_only":
		s.session.SetTimerOnly(ctx, value.GetBoolValue())
	default:
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.Newf("unknown command %q", command))
	}

	if err != nil {
		zlog.Warn().Err(err).Str("command", command).Msg("control command failed")
		return nil, connect.NewError(controlErrorCode(err), err)
	}

	status, err := statusStruct(s.session.Status())
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(status), nil
}

// Subscribe streams the initial state and then every player event.
func (s *PlayerService) Subscribe(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
	stream *connect.ServerStream[structpb.Struct],
) error {
	initial, err := statusStruct(s.session.Status())
	if err != nil {
		return connect.NewError(connect.CodeInternal, err)
	}
	initial.Fields["type"] = structpb.NewStringValue("initial_state")
	initial.Fields["sequence_no"] = structpb.NewNumberValue(float64(s.notifications.NextSequenceNo()))

	if err := stream.Send(initial); err != nil {
		return err
	}

	subscriptionID := s.notifications.Subscribe(stream)
	defer s.notifications.Unsubscribe(subscriptionID)

	// Wait for the client to go away or the session to end
	select {
	case <-ctx.Done():
	case <-s.session.Done():
	}
	return nil
}

func controlErrorCode(err error) connect.Code {
	switch {
	case errors.Is(err, player.ErrNoPlan), errors.Is(err, timer.ErrPlanComplete), errors.Is(err, timer.ErrNoActiveMusic):
		return connect.CodeFailedPrecondition
	case errors.Is(err, timer.ErrOutOfRange):
		return connect.CodeOutOfRange
	case errors.Is(err, player.ErrSessionClosed):
		return connect.CodeUnavailable
	default:
		return connect.CodeInternal
	}
}

func statusStruct(st player.Status) (*structpb.Struct, error) {
	m := map[string]any{
		"session_id":        st.SessionID,
		"state":             st.State.String(),
		"theme":             st.Theme,
		"segment_count":     st.SegmentCount,
		"segment_index":     st.Cursor.SegmentIndex,
		"sub_segment_index": st.Cursor.SubSegmentIndex,
		"segment_remaining": st.Cursor.SegmentTimeRemaining,
		"elapsed":           st.Elapsed,
		"volume":            st.Volume,
		"timer_only":        st.TimerOnly,
	}
	if st.Current != nil {
		m["current"] = notification.ActivityMap(*st.Current)
	}
	if st.Next != nil {
		m["next"] = notification.ActivityMap(*st.Next)
	}

	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build status")
	}
	return s, nil
}

// intValue converts a numeric control value, saturating at the int32 range.
func intValue(v *structpb.Value) int {
	f := v.GetNumberValue()
	if math.IsNaN(f) {
		return 0
	}
	return int(min(max(f, math.MinInt32), math.MaxInt32))
}
