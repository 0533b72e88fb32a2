// Package netstats turns the text reports printed by `broctl netstats` and
// `broctl capstats` into typed samples.
package netstats

import (
	"bufio"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/saveenergy/brofiler/pkg/errors"
	"github.com/saveenergy/brofiler/pkg/types"
)

const (
	labelReceived = "recvd="
	labelDropped  = "dropped="
	labelLink     = "link="

	deviceTokens = 5
	linkTokens   = 3

	// capstats prints a column header and a dashed rule before the rows.
	linkHeaderLines = 2
)

// ParseDevices reads the device layout, one line per device:
//
//	bro: 1423861198.685558 recvd=25118568 dropped=69563523 link=94682096
//
// Blank lines are ignored. Any malformed line fails the whole report.
func ParseDevices(text string) ([]types.DeviceStatSample, error) {
	samples := []types.DeviceStatSample{}
	lineNo := 0
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		sample, err := parseDeviceLine(lineNo, line, fields)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	if err := scanner.Err(); err != nil {
		return nil, &errors.ParseError{Line: lineNo + 1, Cause: err}
	}
	return samples, nil
}

func parseDeviceLine(lineNo int, line string, fields []string) (types.DeviceStatSample, error) {
	if len(fields) != deviceTokens {
		return types.DeviceStatSample{}, &errors.ParseError{
			Line:  lineNo,
			Text:  line,
			Cause: fmt.Errorf("expected %d tokens, got %d", deviceTokens, len(fields)),
		}
	}

	deviceID, ok := strings.CutSuffix(fields[0], ":")
	if !ok || deviceID == "" {
		return types.DeviceStatSample{}, &errors.ParseError{
			Line:  lineNo,
			Text:  line,
			Field: "device_id",
			Cause: fmt.Errorf("expected \"<device>:\", got %q", fields[0]),
		}
	}

	p := lineParser{lineNo: lineNo, line: line}
	sample := types.DeviceStatSample{
		DeviceID:  deviceID,
		Timestamp: p.number("timestamp", fields[1], false),
		Received:  p.labeled("recvd", labelReceived, fields[2]),
		Dropped:   p.labeled("dropped", labelDropped, fields[3]),
		LinkTotal: p.labeled("link", labelLink, fields[4]),
	}
	if p.err != nil {
		return types.DeviceStatSample{}, p.err
	}
	return sample, nil
}

// ParseLinks reads the link layout: a two-line header followed by one row
// per interface, ending at end of input or the first blank or short line.
//
//	Interface             kpps       mbps       (10s average)
//	----------------------------------------
//	localhost/eth2        36.3       25.6
func ParseLinks(text string) ([]types.LinkStatSample, error) {
	samples := []types.LinkStatSample{}
	lineNo := 0
	header := 0
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		fields := strings.Fields(line)

		if header < linkHeaderLines {
			// capstats output starts with an empty line on some versions.
			if len(fields) == 0 && header == 0 {
				continue
			}
			header++
			continue
		}

		if len(fields) < linkTokens {
			break
		}
		if len(fields) > linkTokens {
			return nil, &errors.ParseError{
				Line:  lineNo,
				Text:  line,
				Cause: fmt.Errorf("expected %d tokens, got %d", linkTokens, len(fields)),
			}
		}

		p := lineParser{lineNo: lineNo, line: line}
		sample := types.LinkStatSample{
			InterfaceID: fields[0],
			Kpps:        p.number("kpps", fields[1], true),
			Mbps:        p.number("mbps", fields[2], true),
		}
		if p.err != nil {
			return nil, p.err
		}
		samples = append(samples, sample)
	}
	if err := scanner.Err(); err != nil {
		return nil, &errors.ParseError{Line: lineNo + 1, Cause: err}
	}
	return samples, nil
}

// lineParser keeps the first field error of a line.
type lineParser struct {
	lineNo int
	line   string
	err    error
}

func (p *lineParser) labeled(field, label, token string) float64 {
	if p.err != nil {
		return 0
	}
	value, ok := strings.CutPrefix(token, label)
	if !ok {
		p.fail(field, fmt.Errorf("expected %q prefix", label))
		return 0
	}
	return p.number(field, value, true)
}

func (p *lineParser) number(field, token string, count bool) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		p.fail(field, err)
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		p.fail(field, fmt.Errorf("%q is not finite", token))
		return 0
	}
	if count && v < 0 {
		p.fail(field, fmt.Errorf("negative value %v", v))
		return 0
	}
	return v
}

func (p *lineParser) fail(field string, cause error) {
	p.err = &errors.ParseError{Line: p.lineNo, Text: p.line, Field: field, Cause: cause}
}
