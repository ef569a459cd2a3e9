package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"time"

	"hark/audio"
	"hark/beep"
	"hark/clipboard"
	"hark/config"
	"hark/doctor"
	"hark/hotkey"
	"hark/log"
	"hark/shutdown"
	"hark/transcriber"
)

var version = "dev"

const probeTimeout = 5 * time.Second

// applyFlags copies explicitly set flags over the loaded config. Flags win
// over both the YAML file and the environment.
func applyFlags(cfg *config.Config, set map[string]string) error {
	for name, v := range set {
		var err error
		switch name {
		case "engine":
			cfg.Engine = v
		case "engine-url":
			cfg.EngineURL = v
		case "lang":
			cfg.Language = v
		case "device":
			cfg.Device = v
		case "keymode":
			cfg.KeyMode = v
		case "hotkey":
			cfg.Hotkey = v
		case "output":
			cfg.Output = v
		case "listen":
			cfg.ListenAddr = v
		case "loglevel":
			cfg.LogLevel = v
		case "longpress":
			cfg.LongPress, err = time.ParseDuration(v)
		case "insecure":
			cfg.Insecure, err = strconv.ParseBool(v)
		case "cues":
			cfg.Cues, err = strconv.ParseBool(v)
		}
		if err != nil {
			return fmt.Errorf("flag -%s: %w", name, err)
		}
	}
	// -engine may pick a hosted engine the loader did not fetch a key for.
	if cfg.EngineKey == "" {
		switch cfg.Engine {
		case "groq":
			cfg.EngineKey = os.Getenv("GROQ_API_KEY")
		case "openai":
			cfg.EngineKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	return cfg.Validate()
}

func listenerConfig(cfg config.Config) audio.ListenerConfig {
	lc := audio.DefaultListenerConfig()
	lc.Device = cfg.Device
	lc.Phrase.EnergyThreshold = cfg.EnergyThreshold
	lc.Phrase.PauseThreshold = cfg.PauseThreshold
	lc.Phrase.PhraseMin = cfg.PhraseMin
	return lc
}

func newEngine(cfg config.Config) (transcriber.Engine, error) {
	return transcriber.New(transcriber.Config{
		Engine:   cfg.Engine,
		URL:      cfg.EngineURL,
		APIKey:   cfg.EngineKey,
		Language: cfg.Language,
		Insecure: cfg.Insecure,
	})
}

// probe checks engines that can be reached without transcribing anything.
func probe(ctx context.Context, engine transcriber.Engine) error {
	p, ok := engine.(transcriber.Prober)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return p.Probe(ctx)
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	f, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(f, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(f, debug.CrashOptions{})
}

func fatalf(format string, args ...any) {
	log.Errorf(format, args...)
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	log.Close()
	os.Exit(1)
}

func run() {
	configFlag := flag.String("config", "", "YAML config file (missing file is ignored)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	flag.String("engine", config.DefaultEngine, "Transcription engine: whisperx, groq, openai or fake")
	flag.String("engine-url", config.DefaultEngineURL, "Transcription endpoint (required for whisperx)")
	flag.String("lang", "", "Language code for transcription (e.g., en, es, fr). Empty = auto-detect")
	flag.String("device", "", "Use named microphone device")
	flag.String("keymode", config.DefaultKeyMode, "Hotkey mode: ptt, toggle or hybrid")
	flag.String("hotkey", config.DefaultHotkey, "Hotkey combo, e.g. ctrl+shift+space or alt+f9")
	flag.Duration("longpress", config.DefaultLongPress, "Hybrid mode: hold longer than this for push-to-talk")
	flag.String("output", config.DefaultOutput, "Local output: type (keystrokes) or paste (clipboard)")
	flag.String("listen", config.DefaultListenAddr, "Remote control listen address (needs HARK_API_KEY)")
	flag.String("loglevel", config.DefaultLogLevel, "Log level: debug, info, warn or error")
	flag.Bool("insecure", false, "Skip TLS verification for the transcription endpoint")
	flag.Bool("cues", true, "Play a tone when local dictation starts and stops")
	setupFlag := flag.Bool("setup", false, "Select microphone device interactively")
	tuiFlag := flag.Bool("tui", false, "Show a terminal status view")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven, WAV file as microphone)")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., localhost:6060)")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("hark %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Loader{}.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	set := map[string]string{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = f.Value.String() })
	if err := applyFlags(&cfg, set); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()
	if err := log.SetLevel(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	ctx, stop := shutdown.Context(context.Background(), func(sig os.Signal) {
		log.Infof("%s received, shutting down", sig)
	})
	defer stop()

	if *doctorFlag {
		code := doctor.Run(ctx, os.Stdout, doctor.Checks(cfg))
		log.Close()
		os.Exit(code)
	}

	if cfg.Cues {
		go beep.Init()
	} else {
		beep.Disable()
	}

	engine, err := newEngine(cfg)
	if err != nil {
		fatalf("%v", err)
	}
	if err := probe(ctx, engine); err != nil {
		fatalf("%v", err)
	}

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: hark -test <wav-file>")
			os.Exit(1)
		}
		code := runTestMode(ctx, cfg, engine, args[0], os.Stdin, os.Stdout)
		log.Close()
		os.Exit(code)
	}

	method, _ := clipboard.ParseMethod(cfg.Output)
	if err := clipboard.Init(); err != nil {
		fmt.Printf("Warning: keystroke output init failed: %v\n", err)
		fmt.Println("Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
	}
	out := clipboard.NewTyper(method)

	actx, err := audio.NewContext()
	if err != nil {
		fatalf("initializing audio context: %v", err)
	}
	defer actx.Close()

	if *setupFlag && cfg.Device == "" {
		dev, err := audio.SelectDevice(actx)
		switch {
		case errors.Is(err, audio.ErrSelectionAborted):
			os.Exit(130)
		case err != nil:
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\nFalling back to default device\n", err)
		default:
			cfg.Device = dev.Name
		}
	}
	mic := audio.NewListener(actx, listenerConfig(cfg))
	defer mic.Close()

	a := newApp(cfg, mic, engine, out)

	combo, err := hotkey.ParseCombo(cfg.Hotkey)
	if err != nil {
		fatalf("%v", err)
	}
	mode, err := hotkey.ParseMode(cfg.KeyMode)
	if err != nil {
		fatalf("%v", err)
	}
	hk := hotkey.New(combo)
	if err := hk.Register(); err != nil {
		fatalf("registering hotkey %s: %v", combo, err)
	}
	defer hk.Unregister()
	go hotkey.Bind(ctx, hk, mode, cfg.LongPress, a.state)

	ln, err := a.listen()
	if err != nil {
		fatalf("%v", err)
	}

	deviceLabel := cfg.Device
	if deviceLabel == "" {
		deviceLabel = "system default"
	}
	log.SessionStart(engine.Name(), cfg.KeyMode, deviceLabel)

	tuiDone := make(chan struct{})
	if *tuiFlag {
		p := newTUIProgram(a.status)
		go func() {
			defer close(tuiDone)
			if _, err := p.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
			}
			stop()
		}()
		go func() {
			<-ctx.Done()
			p.Quit()
		}()
	} else {
		close(tuiDone)
		fmt.Printf("hark %s: %s via %s, hold %s to dictate\n", version, deviceLabel, engine.Name(), combo)
		if ln != nil {
			fmt.Printf("remote control on %s\n", ln.Addr())
		}
	}

	if err := a.run(ctx, ln); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	<-tuiDone
	log.SessionEnd(int(a.routed.Load()))
}
