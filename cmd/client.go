package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/vibbin/vibbin/configs"
	"github.com/vibbin/vibbin/internal/client/audio"
	"github.com/vibbin/vibbin/internal/client/audio/speaker"
	"github.com/vibbin/vibbin/internal/client/audio/voice"
	"github.com/vibbin/vibbin/internal/client/call"
	"github.com/vibbin/vibbin/internal/client/media"
	"github.com/vibbin/vibbin/internal/client/media/capture"
	"github.com/vibbin/vibbin/internal/client/peer"
	"github.com/vibbin/vibbin/internal/client/transport"
	"github.com/vibbin/vibbin/internal/schemas/public"
)

// clientSession is one signed-in client: the signaling socket, the call machine driving a
// peer manager, and the cues it plays
type clientSession struct {
	http    *http.Client
	conn    *transport.Conn
	machine *call.Machine
	cues    *audio.Cues
	speaker *speaker.Speaker
}

func accountCredentials() (transport.Credentials, error) {
	creds := transport.Credentials{
		BaseURL:  viper.GetString("account.server"),
		Username: viper.GetString("account.username"),
		Password: viper.GetString("account.password"),
	}
	if creds.Username == "" || creds.Password == "" {
		return creds, fmt.Errorf("no account configured. run `vibbin configure` or edit %s", ConfigFile)
	}
	if creds.BaseURL == "" {
		return creds, fmt.Errorf("account.server not set in %s", ConfigFile)
	}
	return creds, nil
}

func captureDevices() (media.Devices, error) {
	if viper.GetBool("media.synthetic") {
		logrus.Info("using synthetic media tracks")
		return media.Synthetic{}, nil
	}
	devices, err := capture.New()
	if err != nil {
		return nil, fmt.Errorf("error initializing capture devices: %w", err)
	}
	return devices, nil
}

func openSession(ctx context.Context) (*clientSession, error) {
	creds, err := accountCredentials()
	if err != nil {
		return nil, err
	}
	devices, err := captureDevices()
	if err != nil {
		return nil, err
	}
	api, err := configs.NewAPI(devices.RegisterCodecs)
	if err != nil {
		return nil, err
	}
	pcConfig, err := configs.PeerConfiguration()
	if err != nil {
		return nil, fmt.Errorf("invalid ICE configuration: %w", err)
	}

	conn, err := transport.Dial(ctx, creds)
	if err != nil {
		return nil, err
	}

	s := &clientSession{
		http: transport.NewClient(creds),
		conn: conn,
	}

	// the speaker carries both the cues and the other party's voice
	var cueSink audio.Sink
	var onRemoteAudio func(*rtp.Packet)
	if s.speaker, err = speaker.Open(); err != nil {
		logrus.Warnf("no audio output, calls will be silent: %v", err)
	} else {
		if viper.GetBool("call.cues") {
			cueSink = s.speaker
		}
		player, err := voice.NewPlayer(s.speaker)
		if err != nil {
			logrus.Warnf("remote audio disabled: %v", err)
		} else {
			onRemoteAudio = player.HandlePacket
		}
	}
	s.cues = audio.NewCues(cueSink)

	mgr := peer.NewManager(peer.Config{
		API:           api,
		Configuration: pcConfig,
		Devices:       devices,
		Constraints:   configs.MediaConstraints(),
		Signaler:      conn,
		OnRemoteAudio: onRemoteAudio,
	})
	timeouts := configs.GetCallTimeouts()
	s.machine = call.New(ctx, conn, mgr, call.Options{
		NoAnswerTimeout: timeouts.NoAnswer,
		RingTimeout:     timeouts.Ring,
		Tones:           s.cues,
	})
	return s, nil
}

// listen reads signaling messages into the machine until the socket closes. Callers pass a
// context that outlives ctrl-c so the hang-up can still be sent.
func (s *clientSession) listen(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- s.conn.Run(ctx, s.machine.HandleMessage)
	}()
	return done
}

func (s *clientSession) Close() {
	s.machine.Reset()
	_ = s.conn.Close()
	s.cues.Close()
	if s.speaker != nil {
		s.speaker.Close()
	}
}

// follow prints state changes until the call ends. onRinging runs for each incoming call.
func (s *clientSession) follow(ctx context.Context, readErr <-chan error, onRinging func(call.Snapshot)) error {
	var last call.State
	for {
		select {
		case <-ctx.Done():
			_ = s.machine.EndCall()
			printSummary(s.machine.Snapshot())
			return nil

		case err := <-readErr:
			if s.machine.Snapshot().State.Active() {
				s.machine.Reset()
			}
			if err == nil {
				return fmt.Errorf("server closed the connection")
			}
			return fmt.Errorf("lost connection to server: %w", err)

		case snap := <-s.machine.Changes():
			if snap.State == last {
				continue
			}
			last = snap.State

			switch snap.State {
			case call.Calling:
				fmt.Printf("calling %s...\n", displayName(snap))
			case call.Ringing:
				fmt.Printf("incoming call from %s\n", displayName(snap))
				if onRinging != nil {
					onRinging(snap)
				}
			case call.Connecting:
				fmt.Println("connecting...")
			case call.Connected:
				fmt.Printf("connected to %s. press ctrl-c to hang up\n", displayName(snap))
			case call.Ended:
				printSummary(snap)
				return nil
			case call.Idle:
				fmt.Println("waiting for calls...")
			}
		}
	}
}

func displayName(snap call.Snapshot) string {
	if info := snap.TargetUserInfo; info != nil && info.Name != "" {
		return fmt.Sprintf("%s (@%s)", info.Name, info.Username)
	}
	return snap.TargetUserID
}

func printSummary(snap call.Snapshot) {
	var b strings.Builder
	b.WriteString("call ended")
	if snap.CallDuration > 0 {
		fmt.Fprintf(&b, " after %ds", snap.CallDuration)
	}
	if snap.EndReason != "" && snap.EndReason != call.ReasonHangUp {
		fmt.Fprintf(&b, " (%s)", snap.EndReason)
	}
	if snap.Error != "" {
		fmt.Fprintf(&b, ": %s", snap.Error)
	}
	fmt.Println(b.String())

	if snap.RemoteStream != nil {
		for _, st := range snap.RemoteStream.Stats() {
			fmt.Printf("  received %s (%s): %d packets, %d bytes, %d frames\n",
				st.Kind, st.Codec, st.Packets, st.Bytes, st.Frames)
		}
	}
}

// findFriend resolves a username among the account's friends
func findFriend(ctx context.Context, client *http.Client, username string) (*public.Friend, error) {
	status, err := transport.GetStatus(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("error fetching friends: %w", err)
	}
	for _, f := range status.Friends {
		if strings.EqualFold(f.Username, username) {
			return &f, nil
		}
	}
	return nil, fmt.Errorf("%s is not one of your friends", username)
}
