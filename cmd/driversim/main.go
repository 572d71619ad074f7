// Driver simulator: plays the rover side of the relay link for local testing
// without hardware. By default it serves a websocket on :8766 and streams
// frames to whoever connects; with -serial it creates a virtual serial pair
// through socat and streams CSV frames over it.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"RoverRelay/internal/device"
	"RoverRelay/internal/parser"
	"RoverRelay/internal/util"
)

func main() {
	addr := flag.String("addr", ":8766", "websocket listen address")
	fps := flag.Float64("fps", 2, "frames per second")
	images := flag.String("images", "", "directory of .jpg/.png frames (default: generated placeholders)")
	format := flag.String("format", "", "wire format json|csv (default json for websocket, csv for serial)")
	useSerial := flag.Bool("serial", false, "stream over a serial port instead of websocket")
	useSocat := flag.Bool("socat", true, "with -serial, create a socat virtual pair first")
	relaySide := flag.String("link", "/tmp/ttyRELAY", "serial path for the relay to open")
	driverSide := flag.String("port", "/tmp/ttyDRIVER", "serial path used by the simulator")
	baud := flag.Int("baud", 115200, "serial baud rate")
	level := flag.String("log", "info", "log level")
	flag.Parse()

	log := util.SetupLogger(*level, "text")

	frames := device.PlaceholderFrames(8)
	if *images != "" {
		src, err := device.LoadFrames(*images)
		if err != nil {
			util.Error("load frames: %v", err)
			os.Exit(1)
		}
		frames = src
	}
	if *format == "" {
		*format = "json"
		if *useSerial {
			*format = "csv"
		}
	}
	p, ok := parser.ForFormat(*format)
	if !ok {
		util.Error("unknown wire format %q", *format)
		os.Exit(1)
	}
	interval := time.Second
	if *fps > 0 {
		interval = time.Duration(float64(time.Second) / *fps)
	}

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	if *useSerial {
		if *useSocat {
			socat := util.NewSocatManager(log)
			defer socat.Cleanup()
			if err := socat.CreatePair(*relaySide, *driverSide); err != nil {
				util.Error("virtual serial: %v", err)
				return
			}
			util.Info("point the relay at %s (transport serial, wire %s)", *relaySide, *format)
		}
		dev, err := device.NewSerialDevice(*driverSide, *baud)
		if err != nil {
			util.Error("open %s: %v", *driverSide, err)
			return
		}
		sim := device.NewRoverSimulator("serial", dev, p, frames, interval, log)
		done := make(chan error, 1)
		go func() { done <- sim.StartSimulation(stop) }()
		select {
		case <-sig:
			close(stop)
			<-done
		case err := <-done:
			if err != nil {
				util.Error("simulation ended: %v", err)
			}
		}
		return
	}

	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sim := device.NewRoverSimulator(r.RemoteAddr, device.NewWSDevice(conn), p, frames, interval, log)
		if err := sim.StartSimulation(stop); err != nil {
			log.Debug("session ended", "remote", r.RemoteAddr, "error", err)
		}
	})
	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-sig
		close(stop)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	util.Info("driver simulator listening on %s (wire %s, %.1f fps)", *addr, *format, *fps)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		util.Error("listen: %v", err)
		os.Exit(1)
	}
}
