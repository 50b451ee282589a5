// Command spicec is the reference CLI for the SPICE channel runtime: it
// parses the flag surface of spec.md section 6, dials the main channel,
// opens every secondary channel the server's CHANNELS_LIST names, and
// drives the session's single-threaded event loop until disconnect.
// Wiring style (cobra root command, persistent flags bound through
// viper, component construction order, graceful-shutdown signal
// handling) follows the teacher's cmd/breeze-agent/main.go.
package main

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/spicec/internal/app"
	"github.com/breeze-rmm/spicec/internal/cache"
	"github.com/breeze-rmm/spicec/internal/channel"
	"github.com/breeze-rmm/spicec/internal/config"
	"github.com/breeze-rmm/spicec/internal/controller"
	"github.com/breeze-rmm/spicec/internal/cursor"
	"github.com/breeze-rmm/spicec/internal/display"
	"github.com/breeze-rmm/spicec/internal/eventloop"
	"github.com/breeze-rmm/spicec/internal/glz"
	"github.com/breeze-rmm/spicec/internal/inputs"
	"github.com/breeze-rmm/spicec/internal/logging"
	"github.com/breeze-rmm/spicec/internal/mainchannel"
	"github.com/breeze-rmm/spicec/internal/mtls"
	"github.com/breeze-rmm/spicec/internal/platform"
	"github.com/breeze-rmm/spicec/internal/spiceerr"
	"github.com/breeze-rmm/spicec/internal/video"
	"github.com/breeze-rmm/spicec/internal/wire"
	"github.com/breeze-rmm/spicec/pkg/spice"
)

// Exit codes per spec.md section 6.
const (
	exitOK            = 0
	exitInvalidArg    = 1
	exitConnectFailed = 2
	exitAuthFailed    = 3
	exitDisconnect    = 4
)

var log = logging.L("main")

var cfgFile string
var cliCfg config.Config
var unsecureChannels []string // accepted for CLI-surface compatibility; the inverse of --secure-channels is already the default
var enabledChannels []string

var rootCmd = &cobra.Command{
	Use:   "spicec",
	Short: "SPICE remote-desktop client",
	Long:  "spicec connects to a SPICE server, multiplexes its channels, and renders the session through a pluggable display back-end.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runClient()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default /etc/spicec/spicec.yaml)")
	flags.StringVar(&cliCfg.Host, "host", "", "SPICE server host")
	flags.IntVar(&cliCfg.Port, "port", -1, "unsecured channel port")
	flags.IntVar(&cliCfg.SecurePort, "secure-port", -1, "TLS channel port")
	flags.StringVar(&cliCfg.Password, "password", "", "session ticket password")
	flags.StringSliceVar(&cliCfg.SecureChannels, "secure-channels", nil, "channel names (or \"all\") that must use --secure-port")
	flags.StringSliceVar(&unsecureChannels, "unsecure-channels", nil, "channel names that must use --port (every channel not in --secure-channels already does; accepted for CLI-surface compatibility)")
	flags.StringSliceVar(&cliCfg.DisabledChannels, "disable-channels", nil, "channel names the client should never open")
	flags.StringSliceVar(&enabledChannels, "enable-channels", nil, "channel names to force-remove from --disable-channels, applied after config/flag merge")
	flags.BoolVar(&cliCfg.FullScreen, "full-screen", false, "start every screen full-screen")
	flags.BoolVar(&cliCfg.AutoConf, "auto-conf", false, "auto-configure monitor layout in full-screen mode")
	flags.StringSliceVar(&cliCfg.CanvasType, "canvas-type", nil, "canvas back-end preference order (cairo, gdi, gl_fbo, gl_pbuff, sw)")
	flags.StringVar(&cliCfg.CAFile, "ca-file", "", "PEM CA bundle for verifying the server certificate")
	flags.BoolVar(&cliCfg.InsecureSkipVerify, "insecure", false, "skip TLS certificate verification")
	flags.StringVar(&cliCfg.ProxyAddr, "proxy", "", "SOCKS5 proxy host:port to dial every channel through")
	flags.BoolVar(&cliCfg.ControllerEnabled, "enable-controller", false, "expose the loopback foreign-menu controller endpoint")
	flags.StringVar(&cliCfg.ControllerAddr, "controller-addr", "127.0.0.1:0", "controller listen address")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case spiceerr.Is(err, spiceerr.CategoryAuth):
		return exitAuthFailed
	case spiceerr.Is(err, spiceerr.CategoryIO):
		return exitConnectFailed
	case spiceerr.Is(err, spiceerr.CategoryCancelled):
		return exitDisconnect
	default:
		return exitInvalidArg
	}
}

// runClient loads config, merges the CLI overrides on top of it, and
// drives the session until the process receives a termination signal.
// A main-channel disconnect does not end it: the channel reconnects.
func runClient() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("spicec: %w", err)
	}
	mergeFlagOverrides(cfg)
	initLogging(cfg)

	if cfg.Host == "" {
		return spiceerr.Protocol("spicec: --host is required")
	}
	if cfg.Port < 0 && cfg.SecurePort < 0 {
		return spiceerr.Protocol("spicec: one of --port or --secure-port is required")
	}

	loop := eventloop.New(256)

	sess := newSession(cfg, loop)

	in := inputs.New()
	clock := &mainchannel.Clock{}
	mainCh := mainchannel.New(sess.appProxy(), clock)
	sess.inputsCh = in
	sess.mainChannel = mainCh
	sess.clock = clock

	a := app.New(app.Config{Loop: loop, Opener: sess}, mainCh, in)
	sess.application = a

	mainScreen := app.NewScreen(0, platform.NewStatusBackend(0))
	a.AddScreen(0, mainScreen)
	if cfg.FullScreen {
		mainScreen.SetFullScreen(true)
	}

	mainBase := channel.New(channel.Config{
		ChannelType:  spice.ChannelMain,
		ChannelID:    0,
		ConnectionID: sess.connectionID,
		Password:     cfg.Password,
	}, sess.dialer(spice.ChannelMain), mainCh)
	mainCh.Base = mainBase

	inputsBase := channel.New(channel.Config{
		ChannelType:  spice.ChannelInputs,
		ChannelID:    0,
		ConnectionID: sess.connectionID,
		Password:     cfg.Password,
	}, sess.dialer(spice.ChannelInputs), in)
	in.Base = inputsBase

	if cfg.ControllerEnabled {
		ctl := controller.New(sess)
		go func() {
			if err := ctl.Serve(cfg.ControllerAddr); err != nil {
				log.Warn("controller server stopped", "error", err)
			}
		}()
		defer ctl.Close()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutdown signal received")
		mainBase.Stop()
		loop.Stop()
	}()

	go mainBase.Run()
	// Inputs is opened eagerly rather than waiting for CHANNELS_LIST,
	// since every SPICE session needs it and the server tolerates an
	// early LINK_MESS.
	go inputsBase.Run()

	loop.Run()
	return nil
}

func mergeFlagOverrides(cfg *config.Config) {
	if cliCfg.Host != "" {
		cfg.Host = cliCfg.Host
	}
	if cliCfg.Port >= 0 {
		cfg.Port = cliCfg.Port
	}
	if cliCfg.SecurePort >= 0 {
		cfg.SecurePort = cliCfg.SecurePort
	}
	if cliCfg.Password != "" {
		cfg.Password = cliCfg.Password
	}
	if len(cliCfg.SecureChannels) > 0 {
		cfg.SecureChannels = cliCfg.SecureChannels
	}
	if len(cliCfg.DisabledChannels) > 0 {
		cfg.DisabledChannels = cliCfg.DisabledChannels
	}
	if len(enabledChannels) > 0 {
		cfg.DisabledChannels = removeNames(cfg.DisabledChannels, enabledChannels)
	}
	if len(cliCfg.CanvasType) > 0 {
		cfg.CanvasType = cliCfg.CanvasType
	}
	if cliCfg.CAFile != "" {
		cfg.CAFile = cliCfg.CAFile
	}
	if cliCfg.InsecureSkipVerify {
		cfg.InsecureSkipVerify = true
	}
	if cliCfg.ProxyAddr != "" {
		cfg.ProxyAddr = cliCfg.ProxyAddr
	}
	if cliCfg.FullScreen {
		cfg.FullScreen = true
	}
	if cliCfg.AutoConf {
		cfg.AutoConf = true
	}
	if cliCfg.ControllerEnabled {
		cfg.ControllerEnabled = true
	}
	if cliCfg.ControllerAddr != "" {
		cfg.ControllerAddr = cliCfg.ControllerAddr
	}
}

// removeNames returns names with every entry matching (case-insensitively)
// something in remove dropped, preserving order.
func removeNames(names, remove []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		drop := false
		for _, r := range remove {
			if strings.EqualFold(n, r) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, n)
		}
	}
	return out
}

func initLogging(cfg *config.Config) {
	var output io.Writer = os.Stdout
	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			fmt.Fprintf(os.Stderr, "spicec: log file %s unavailable, logging to stdout: %v\n", cfg.LogFile, err)
		} else {
			output = logging.TeeWriter(os.Stdout, rw)
		}
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, output)
	log = logging.L("main")
}

// session owns everything shared across every channel of one connection:
// the per-session caches/GLZ window spec.md section 3 requires, and the
// dialer that applies the --secure-channels/--disable-channels policy
// per channel type.
type session struct {
	cfg          *config.Config
	loop         *eventloop.Loop
	connectionID uint32

	pixmaps   *cache.Cache
	glzWin    *glz.Window
	bandwidth *video.BandwidthEstimator

	cursorShapes *cache.Cache // shared by every cursor channel

	application *app.Application
	mainChannel *mainchannel.Channel
	inputsCh    *inputs.Channel
	clock       *mainchannel.Clock
}

func newSession(cfg *config.Config, loop *eventloop.Loop) *session {
	var idBuf [4]byte
	_, _ = rand.Read(idBuf[:])
	return &session{
		cfg:          cfg,
		loop:         loop,
		connectionID: binary.LittleEndian.Uint32(idBuf[:]),
		pixmaps:      cache.New(cfg.PixmapCacheSizeMB * 1024 * 1024),
		glzWin:       glz.NewWindow(cfg.GLZWindowSizeMB * 1024 * 1024),
		bandwidth:    video.NewBandwidthEstimator(),
		cursorShapes: cache.New(4 * 1024 * 1024),
	}
}

// appProxy lets mainchannel.New take the application as its Listener even
// though the application is constructed after the clock it needs; the two
// are tied together in runClient in the order the teacher's session
// bootstrap follows (construct shared state, then each owner in turn).
func (s *session) appProxy() mainchannel.Listener {
	return applicationListener{s}
}

// applicationListener defers to s.application once it exists, so the
// main channel can be constructed before the Application that will
// eventually receive its callbacks.
type applicationListener struct{ s *session }

func (l applicationListener) OnChannelsList(sessionID uint32, channels []spice.ChannelID) {
	if l.s.application != nil {
		l.s.application.OnChannelsList(sessionID, channels)
	}
}
func (l applicationListener) OnMouseModeChanged(mode uint32) {
	if l.s.application != nil {
		l.s.application.OnMouseModeChanged(mode)
	}
}
func (l applicationListener) OnNotify(n spice.Notify) {
	if l.s.application != nil {
		l.s.application.OnNotify(n)
	}
}
func (l applicationListener) OnAgentConnected(connected bool) {
	if l.s.application != nil {
		l.s.application.OnAgentConnected(connected)
	}
}
func (l applicationListener) OnAgentData(data []byte) {
	if l.s.application != nil {
		l.s.application.OnAgentData(data)
	}
}
func (l applicationListener) OnMigrateBegin(m spice.MainMigrateBegin) {
	if l.s.application != nil {
		l.s.application.OnMigrateBegin(m)
	}
}
func (l applicationListener) OnMigrateCancel() {
	if l.s.application != nil {
		l.s.application.OnMigrateCancel()
	}
}
func (l applicationListener) OnMigrateSwitchHost(m spice.MainMigrateSwitchHost) {
	if l.s.application != nil {
		l.s.application.OnMigrateSwitchHost(m)
	}
}

// dialer builds the dial func a channel.Base uses to reconnect,
// selecting the secure or unsecured port per --secure-channels/
// --port/--secure-port and spec.md section 6.
func (s *session) dialer(channelType spice.ChannelType) func() (*wire.Conn, error) {
	return func() (*wire.Conn, error) {
		useTLS := s.requiresTLS(channelType)
		port := s.cfg.Port
		if useTLS {
			port = s.cfg.SecurePort
		}
		if port < 0 {
			return nil, spiceerr.IO("spicec: no %s port configured for channel %s", tlsLabel(useTLS), channelType.String())
		}
		addr := fmt.Sprintf("%s:%d", s.cfg.Host, port)
		return wire.Dial(wire.DialOptions{
			Address:   addr,
			ProxyAddr: s.cfg.ProxyAddr,
			UseTLS:    useTLS,
			TLS: mtls.Options{
				CAFile:             s.cfg.CAFile,
				ServerName:         s.cfg.Host,
				InsecureSkipVerify: s.cfg.InsecureSkipVerify,
			},
		})
	}
}

func tlsLabel(tls bool) string {
	if tls {
		return "secure"
	}
	return "unsecured"
}

func (s *session) requiresTLS(channelType spice.ChannelType) bool {
	if s.cfg.Port < 0 {
		return true
	}
	if s.cfg.SecurePort < 0 {
		return false
	}
	for _, name := range s.cfg.SecureChannels {
		if strings.EqualFold(name, "all") || strings.EqualFold(name, channelType.String()) {
			return true
		}
	}
	return false
}

func (s *session) channelDisabled(channelType spice.ChannelType) bool {
	for _, name := range s.cfg.DisabledChannels {
		if strings.EqualFold(name, channelType.String()) {
			return true
		}
	}
	return false
}

// --- app.ChannelOpener ---

func (s *session) OpenDisplay(id uint8) {
	if s.channelDisabled(spice.ChannelDisplay) {
		return
	}
	screenID := uint32(id)
	screen := app.NewScreen(screenID, platform.NewStatusBackend(screenID))
	s.application.AddScreen(screenID, screen)

	disp := display.New(display.Config{
		Screen:           screen,
		Clock:            s.clock,
		Loop:             s.loop,
		PixmapCacheBytes: s.cfg.PixmapCacheSizeMB * 1024 * 1024,
		GLZWindowBytes:   s.cfg.GLZWindowSizeMB * 1024 * 1024,
		Bandwidth:        s.bandwidth,
	}, s.pixmaps, s.glzWin)

	base := channel.New(channel.Config{
		ChannelType:  spice.ChannelDisplay,
		ChannelID:    id,
		ConnectionID: s.connectionID,
		Password:     s.cfg.Password,
	}, s.dialer(spice.ChannelDisplay), disp)
	disp.Base = base
	go base.Run()
}

func (s *session) OpenCursor(id uint8) {
	if s.channelDisabled(spice.ChannelCursor) {
		return
	}
	cur := cursor.New(cursor.Config{}, s.cursorShapes)

	base := channel.New(channel.Config{
		ChannelType:  spice.ChannelCursor,
		ChannelID:    id,
		ConnectionID: s.connectionID,
		Password:     s.cfg.Password,
	}, s.dialer(spice.ChannelCursor), cur)
	cur.Base = base
	s.application.AddCursor(id, cur)
	go base.Run()
}

func (s *session) OpenInputs() {
	// Opened eagerly in runClient; nothing further to do here. The
	// method exists to satisfy app.ChannelOpener, matching the other
	// Open* calls' shape for any future per-session inputs channel.
}

func (s *session) OpenPlayback(id uint8) {
	if s.channelDisabled(spice.ChannelPlayback) {
		return
	}
	log.Info("server offered a playback channel; audio device bindings are out of scope for this core", "id", id)
}

func (s *session) OpenRecord(id uint8) {
	if s.channelDisabled(spice.ChannelRecord) {
		return
	}
	log.Info("server offered a record channel; audio device bindings are out of scope for this core", "id", id)
}

// --- controller.Handler ---

func (s *session) Connect(host string, port, securePort int, password string) error {
	s.cfg.Host = host
	if port > 0 {
		s.cfg.Port = port
	}
	if securePort > 0 {
		s.cfg.SecurePort = securePort
	}
	s.cfg.Password = password
	return nil
}

// Show/Hide only log the request: the reference CLI has no window whose
// visibility they could change (spec.md section 1 places windowing out of
// scope for the core).
func (s *session) Show() { log.Info("controller requested show") }
func (s *session) Hide() { log.Info("controller requested hide") }

func (s *session) SetTitle(title string) {
	log.Info("controller set title", "title", title)
}

func (s *session) SetHotKeys(spec string) error {
	table, err := app.ParseHotKeys(spec)
	if err != nil {
		return err
	}
	s.application.SetHotKeys(table)
	return nil
}
