// Package main provides the player CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	apiconnect "github.com/osa030/spinbox/internal/api/connect"
)

var (
	app    = kingpin.New("spinbox-playercli", "spinbox player client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()

	// status command
	statusCmd = app.Command("status", "Show player status")

	// control command
	controlCmd     = app.Command("control", "Send a player command")
	controlCommand = controlCmd.Arg("command", "play, pause, toggle, next, previous, jump, seek, skip, volume or timer_only").
			Required().Enum("play", "pause", "toggle", "next", "previous", "jump", "seek", "skip", "volume", "timer_only")
	controlValue = controlCmd.Arg("value", "Segment index, seconds, volume fraction or true/false").String()

	// subscribe command
	subscribeCmd = app.Command("subscribe", "Stream player events").Alias("watch")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case statusCmd.FullCommand():
		err = status(ctx)
	case controlCmd.FullCommand():
		err = control(ctx, *controlCommand, *controlValue)
	case subscribeCmd.FullCommand():
		err = subscribe(ctx)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func status(ctx context.Context) error {
	client := connect.NewClient[emptypb.Empty, structpb.Struct](http.DefaultClient, *server+apiconnect.GetStatusProcedure)
	resp, err := client.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return err
	}
	printStatus(resp.Msg)
	return nil
}

func control(ctx context.Context, command, value string) error {
	if *token == "" {
		return fmt.Errorf("admin token is required (use --token or ADMIN_TOKEN env)")
	}

	fields := map[string]any{"command": command}
	switch command {
	case "jump", "seek", "skip", "volume":
		if value == "" {
			return fmt.Errorf("%s needs a value", command)
		}
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", value, err)
		}
		fields["value"] = n
	case "timer_only":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", value, err)
		}
		fields["value"] = b
	}

	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return err
	}

	client := connect.NewClient[structpb.Struct, structpb.Struct](http.DefaultClient, *server+apiconnect.ControlProcedure)
	req := connect.NewRequest(msg)
	req.Header().Set(apiconnect.AdminTokenHeader, *token)
	resp, err := client.CallUnary(ctx, req)
	if err != nil {
		return err
	}
	printStatus(resp.Msg)
	return nil
}

func subscribe(ctx context.Context) error {
	client := connect.NewClient[emptypb.Empty, structpb.Struct](http.DefaultClient, *server+apiconnect.SubscribeProcedure)
	stream, err := client.CallServerStream(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	fmt.Println("Subscribed. Press Ctrl+C to stop.")
	for stream.Receive() {
		printEvent(stream.Msg())
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func printStatus(s *structpb.Struct) {
	f := s.GetFields()
	fmt.Println("\n=== PLAYER STATUS ===")
	fmt.Printf("Session: %s\n", f["session_id"].GetStringValue())
	fmt.Printf("Theme: %s\n", f["theme"].GetStringValue())
	fmt.Printf("State: %s\n", f["state"].GetStringValue())
	fmt.Printf("Segment: %d/%d\n", int(f["segment_index"].GetNumberValue())+1, int(f["segment_count"].GetNumberValue()))
	fmt.Printf("Elapsed: %s\n", formatSeconds(f["elapsed"].GetNumberValue()))
	fmt.Printf("Volume: %d%%\n", int(f["volume"].GetNumberValue()*100))
	fmt.Printf("Timer only: %v\n", f["timer_only"].GetBoolValue())

	if cur := f["current"].GetStructValue(); cur != nil {
		fmt.Println("\nNow:")
		printActivity(cur)
	}
	if next := f["next"].GetStructValue(); next != nil {
		fmt.Println("\nUp next:")
		printActivity(next)
	}
	fmt.Println()
}

func printActivity(a *structpb.Struct) {
	f := a.GetFields()
	fmt.Printf("  %s", f["name"].GetStringValue())
	var tags []string
	for _, key := range []string{"intensity", "position", "bpm_range"} {
		if v := f[key].GetStringValue(); v != "" {
			tags = append(tags, v)
		}
	}
	if len(tags) > 0 {
		fmt.Printf(" [%s]", strings.Join(tags, ", "))
	}
	fmt.Printf(" %s remaining\n", formatSeconds(f["time_remaining"].GetNumberValue()))
	if d := f["description"].GetStringValue(); d != "" {
		fmt.Printf("  %s\n", d)
	}
}

func printEvent(ev *structpb.Struct) {
	f := ev.GetFields()
	seq := int(f["sequence_no"].GetNumberValue())
	switch typ := f["type"].GetStringValue(); typ {
	case "initial_state":
		printStatus(ev)
	case "progress_update":
		// Too chatty for a terminal
	case "countdown_tick":
		fmt.Printf("[%d] %s left\n", seq, formatSeconds(f["seconds_remaining"].GetNumberValue()))
	case "segment_activated", "sub_segment_transition":
		name := f["current"].GetStructValue().GetFields()["name"].GetStringValue()
		fmt.Printf("[%d] %s: %s\n", seq, typ, name)
	case "play_state_changed":
		fmt.Printf("[%d] playing=%v\n", seq, f["playing"].GetBoolValue())
	default:
		fmt.Printf("[%d] %s\n", seq, typ)
	}
}

func formatSeconds(v float64) string {
	s := int(v)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
