package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path"
	"strings"
	"sync"
	"syscall"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	tapopywal "github.com/d0ksan8/tapo-pywal"
	"github.com/d0ksan8/tapo-pywal/client"
)

var (
	cfgFile    string
	cfgReadErr error

	flagPywal      bool
	flagIndex      int
	flagColor      string
	flagBrightness int
	flagOn         bool
	flagOff        bool
	flagStatus     bool

	flagFrom    string
	flagTo      string
	flagPeriod  int
	flagTimeout time.Duration
)

var RootCmd = &cobra.Command{
	Use:   "tapo-pywal",
	Short: "tapo-pywal syncs a Tapo smart bulb with your pywal colors.",
	Example: `  tapo-pywal --pywal              # use pywal accent color (color 1)
  tapo-pywal --pywal --index 2    # use pywal color 2
  tapo-pywal --color "#FF0000"    # set red color
  tapo-pywal --color "255,128,0"  # set orange color
  tapo-pywal --off                # turn off bulb
  tapo-pywal --on                 # turn on bulb`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

// bulbAction is the single operation a root invocation performs. The first
// matching flag wins: --off, --on, --status, --pywal, --color, then help.
type bulbAction int

const (
	actionHelp bulbAction = iota
	actionOff
	actionOn
	actionStatus
	actionPywal
	actionColor
)

func pickAction(off, on, status, pywal bool, colorSpec string) bulbAction {
	switch {
	case off:
		return actionOff
	case on:
		return actionOn
	case status:
		return actionStatus
	case pywal:
		return actionPywal
	case colorSpec != "":
		return actionColor
	default:
		return actionHelp
	}
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	action := pickAction(flagOff, flagOn, flagStatus, flagPywal, flagColor)
	if action == actionHelp {
		return cmd.Help()
	}

	ctx := context.Background()
	bulb, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer bulb.Close()

	switch action {
	case actionOff:
		fmt.Println("Turning off...")
		if err := bulb.Off(ctx); err != nil {
			return err
		}
		fmt.Println("Bulb turned off.")
	case actionOn:
		fmt.Println("Turning on...")
		if err := bulb.On(ctx); err != nil {
			return err
		}
		fmt.Println("Bulb turned on.")
	case actionStatus:
		info, err := bulb.GetDeviceInfo(ctx)
		if err != nil {
			return err
		}
		printStatus(info)
	case actionPywal:
		applied, err := tapopywal.ApplyPaletteIndex(ctx, bulb, walColorsPath(), flagIndex, flagBrightness)
		if err != nil {
			return err
		}
		if applied {
			fmt.Println("Pywal color applied!")
		}
	case actionColor:
		color, err := tapopywal.ParseSpec(flagColor)
		if err != nil {
			return err
		}
		if err := tapopywal.ApplyColor(ctx, bulb, color, flagBrightness); err != nil {
			return err
		}
		fmt.Println("Color applied!")
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of tapo-pywal",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("tapo-pywal v1.0.0 -- HEAD")
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the pywal cache and keep the bulb in sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		bulb, err := connect(context.Background(), cfg)
		if err != nil {
			return err
		}
		defer bulb.Close()

		interval := time.Duration(viper.GetInt64("watch.interval")) * time.Second
		if interval <= 0 {
			interval = 2 * time.Second
		}

		stop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(2)

		paletteFerry := make(chan tapopywal.Palette, 1)

		go func() {
			if err := tapopywal.NewPaletteWatcher(stop, &wg, paletteFerry, walColorsPath(), interval); err != nil {
				log.WithError(err).Error("Error shutting down palette watcher.")
			}
		}()

		go func() {
			if err := tapopywal.NewPaletteApplier(stop, &wg, paletteFerry, bulb, flagIndex, flagBrightness); err != nil {
				log.WithError(err).Error("Error shutting down palette applier.")
			}
		}()

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		close(stop)
		wg.Wait()
		return nil
	},
}

var breatheCmd = &cobra.Command{
	Use:   "breathe",
	Short: "Cycle the bulb between two colors",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagPeriod < 1 {
			return fmt.Errorf("period must be at least 1 second")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := context.Background()
		bulb, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer bulb.Close()

		from, to, err := breatheAnchors()
		if err != nil {
			return err
		}
		if err := bulb.SetBrightness(ctx, flagBrightness); err != nil {
			return err
		}

		effect := tapopywal.NewBreatheEffect(bulb, from, to, flagPeriod)
		if err := effect.Start(); err != nil {
			return err
		}

		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		return effect.Stop()
	},
}

// breatheAnchors resolves --from/--to, defaulting to the palette's
// background and accent colors.
func breatheAnchors() (from, to tapopywal.Color, err error) {
	var palette tapopywal.Palette
	if flagFrom == "" || flagTo == "" {
		palette, err = tapopywal.LoadPalette(walColorsPath())
		if err != nil {
			return from, to, err
		}
		if len(palette) == 0 {
			return from, to, fmt.Errorf("no pywal palette available; pass --from and --to or run 'wal' first")
		}
	}
	if flagFrom != "" {
		from, err = tapopywal.ParseSpec(flagFrom)
	} else {
		from, _, err = palette.Select(0)
	}
	if err != nil {
		return from, to, err
	}
	if flagTo != "" {
		to, err = tapopywal.ParseSpec(flagTo)
	} else {
		to, _, err = palette.Select(1)
	}
	return from, to, err
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Scan the local network for Tapo devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("Scanning for Tapo devices (%s)...\n", flagTimeout)
		devices, err := client.Discover(flagTimeout)
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			fmt.Println("No devices found.")
			return nil
		}
		for _, device := range devices {
			fmt.Printf("%-16s %-12s %-18s %s\n", device.IP, device.DeviceModel, device.MAC, device.DeviceType)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(watchCmd)
	RootCmd.AddCommand(breatheCmd)
	RootCmd.AddCommand(discoverCmd)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.json in ., ~/.config/tapo-pywal, /etc/tapo-pywal)")

	RootCmd.Flags().BoolVar(&flagPywal, "pywal", false, "use pywal color")
	RootCmd.Flags().IntVar(&flagIndex, "index", 1, "pywal color index (1 = accent)")
	RootCmd.Flags().StringVar(&flagColor, "color", "", "set color (hex: #FF0000 or RGB: 255,0,0)")
	RootCmd.Flags().IntVar(&flagBrightness, "brightness", 100, "brightness 1-100")
	RootCmd.Flags().BoolVar(&flagOn, "on", false, "turn on bulb")
	RootCmd.Flags().BoolVar(&flagOff, "off", false, "turn off bulb")
	RootCmd.Flags().BoolVar(&flagStatus, "status", false, "show bulb status")

	watchCmd.Flags().IntVar(&flagIndex, "index", 1, "pywal color index (1 = accent)")
	watchCmd.Flags().IntVar(&flagBrightness, "brightness", 100, "brightness 1-100")

	breatheCmd.Flags().StringVar(&flagFrom, "from", "", "first color (default: pywal background)")
	breatheCmd.Flags().StringVar(&flagTo, "to", "", "second color (default: pywal accent)")
	breatheCmd.Flags().IntVar(&flagPeriod, "period", 6, "seconds per cycle")
	breatheCmd.Flags().IntVar(&flagBrightness, "brightness", 100, "brightness 1-100")

	discoverCmd.Flags().DurationVar(&flagTimeout, "timeout", 3*time.Second, "how long to wait for replies")

	viper.SetDefault("watch.interval", 2)
	viper.SetDefault("log.level", "info")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("TAPOPYWAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		viper.AddConfigPath(".")
		viper.AddConfigPath(path.Join(home, ".config", "tapo-pywal"))
		viper.AddConfigPath("/etc/tapo-pywal/")
		viper.SetConfigName("config")
		viper.SetConfigType("json")
	}

	cfgReadErr = viper.ReadInConfig()

	level, err := log.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

type deviceConfig struct {
	Email    string
	Password string
	DeviceIP string
}

// loadConfig surfaces the result of initConfig for the commands that need
// credentials. Commands like version and discover never call it, so a
// missing config file only fails the invocations that talk to the bulb.
func loadConfig() (*deviceConfig, error) {
	if cfgReadErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(cfgReadErr, &notFound) || os.IsNotExist(cfgReadErr) {
			if cfgFile != "" {
				return nil, fmt.Errorf("config file not found at %s; create config.json with: email, password, device_ip", cfgFile)
			}
			return nil, fmt.Errorf("no config.json in ., ~/.config/tapo-pywal, or /etc/tapo-pywal; create one with: email, password, device_ip")
		}
		return nil, cfgReadErr
	}

	cfg := &deviceConfig{
		Email:    viper.GetString("email"),
		Password: viper.GetString("password"),
		DeviceIP: viper.GetString("device_ip"),
	}
	for _, field := range []struct {
		key   string
		value string
	}{
		{"email", cfg.Email},
		{"password", cfg.Password},
		{"device_ip", cfg.DeviceIP},
	} {
		if field.value == "" {
			return nil, fmt.Errorf("config is missing required field %q", field.key)
		}
	}
	return cfg, nil
}

func connect(ctx context.Context, cfg *deviceConfig) (*client.Device, error) {
	fmt.Printf("Connecting to Tapo L530 at %s...\n", cfg.DeviceIP)
	bulb := client.New(cfg.DeviceIP, cfg.Email, cfg.Password)
	if err := bulb.Connect(ctx); err != nil {
		return nil, err
	}
	return bulb, nil
}

func printStatus(info *client.DeviceInfo) {
	fmt.Printf("Device: %s\n", info.Nickname)
	fmt.Printf("Model: %s\n", info.Model)
	fmt.Printf("On: %t\n", info.DeviceOn)
	fmt.Printf("Brightness: %d%%\n", info.Brightness)
	if info.Hue != nil && info.Saturation != nil {
		fmt.Printf("Hue: %d\n", *info.Hue)
		fmt.Printf("Saturation: %d\n", *info.Saturation)
	}
}

// walColorsPath returns the pywal cache location, honoring the wal_colors
// config override.
func walColorsPath() string {
	if p := viper.GetString("wal_colors"); p != "" {
		return p
	}
	home, err := homedir.Dir()
	if err != nil {
		return path.Join(".cache", "wal", "colors")
	}
	return path.Join(home, ".cache", "wal", "colors")
}
