// Command vicpctl sends a single SCPI command (or fetches a waveform)
// to a LeCroy scope over VICP and prints the result, in the spirit of
// the teacher's cmd/get one-shot HTTP fetch tool.
package main

import (
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/epics-modules/lecroyvicp"
)

func main() {
	ip := flag.String("ip", "", "scope IP address")
	channels := flag.Int("channels", 4, "analog channel count (2 or 4)")
	cmd := flag.String("cmd", "*IDN?", "SCPI command to send")
	query := flag.Bool("query", true, "read a response back")
	waveform := flag.Int("waveform-channel", 0, "if set (1-8), read a waveform from this channel instead of -cmd")
	points := flag.Int("points", 10000, "max waveform points to fetch")
	flag.Parse()

	if *ip == "" {
		logrus.Fatal("vicpctl: -ip is required")
	}

	cfg := vicp.DefaultConfig()
	session, err := vicp.Dial(*ip, *channels, cfg, nil)
	if err != nil {
		logrus.Fatalf("vicpctl: dial: %v", err)
	}
	defer session.Close()

	if session.LinkState() != vicp.LinkOK {
		logrus.Fatalf("vicpctl: link not ready: %v", session.LastError())
	}
	logrus.Infof("vicpctl: connected to %s", session.Model())

	if *waveform > 0 {
		samples, desc, err := session.ReadWaveform(*waveform, *points)
		if err != nil {
			logrus.Fatalf("vicpctl: waveform read: %v", err)
		}
		logrus.Infof("vicpctl: read %d points, gain=%g offset=%g", len(samples), desc.VerticalGain, desc.VerticalOffset)
		for i, v := range samples {
			if i >= 20 {
				logrus.Infof("... (%d more points)", len(samples)-20)
				break
			}
			logrus.Infof("sample[%d] = %g", i, v)
		}
		return
	}

	resp, err := session.Operate(*cmd, *query)
	if err != nil {
		logrus.Fatalf("vicpctl: operate: %v", err)
	}
	if *query {
		logrus.Infof("vicpctl: response: %s", resp)
	}
	os.Exit(0)
}
