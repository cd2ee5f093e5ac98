package usecases

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/abelzeko/onemine/internal/entities"
	"github.com/abelzeko/onemine/internal/repository"
	"github.com/abelzeko/onemine/internal/table"
	"github.com/abelzeko/onemine/internal/timerange"
)

// DefaultMinRSSI is the weakest signal shown by the RSSI scan
const DefaultMinRSSI = -80

// TagUseCase reads the tag antennas of a machine
type TagUseCase struct {
	opener repository.Opener
	log    logrus.FieldLogger
}

// NewTagUseCase creates a new tag use case
func NewTagUseCase(opener repository.Opener, log logrus.FieldLogger) *TagUseCase {
	return &TagUseCase{opener: opener, log: log}
}

func (uc *TagUseCase) remote(ctx context.Context, machine entities.Machine) (*repository.Remote, logrus.FieldLogger, error) {
	log := uc.log.WithFields(logrus.Fields{"machine": machine.Name, "ip": machine.IPAddress})
	remote, err := uc.opener.OpenRemote(ctx, machine.IPAddress)
	if err != nil {
		return nil, log, err
	}
	return remote, log, nil
}

// RSSI returns the readings in rng stronger than minRSSI, newest first
func (uc *TagUseCase) RSSI(ctx context.Context, machine entities.Machine, rng timerange.Range, minRSSI int) (*table.Table, error) {
	remote, log, err := uc.remote(ctx, machine)
	if err != nil {
		return nil, err
	}
	defer remote.Close()

	readings, err := remote.Tags.RSSIReadings(ctx, rng, minRSSI)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch RSSI readings: %w", err)
	}
	log.Infof("Successfully fetched %d readings above %d dBm", len(readings), minRSSI)
	return RSSITable(readings), nil
}

// Trenches returns the most recent reading of every (tag, MB, trench) seen in rng
func (uc *TagUseCase) Trenches(ctx context.Context, machine entities.Machine, rng timerange.Range) (*table.Table, error) {
	remote, log, err := uc.remote(ctx, machine)
	if err != nil {
		return nil, err
	}
	defer remote.Close()

	readings, err := remote.Tags.RawReadings(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tag readings: %w", err)
	}
	tags := LatestPerTrench(readings)
	log.Infof("Successfully reduced %d readings to %d trench tags", len(readings), len(tags))
	return TrenchesTable(tags), nil
}

// LatestPerTrench keeps the most recent reading of each (TagId, MB, Zanja),
// ordered by that reading's time, oldest first. Street carries the MB zone.
// readings must be newest first, as RawReadings returns them; that order
// breaks ties between readings of the same minute.
func LatestPerTrench(readings []entities.RSSIReading) []entities.TrenchTag {
	sorted := slices.Clone(readings)
	slices.Reverse(sorted)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	key := func(r entities.RSSIReading) string {
		return strconv.FormatInt(r.TagID, 10) + "\x00" + r.Street + "\x00" + r.Trench
	}
	last := make(map[string]int, len(sorted))
	for i, r := range sorted {
		last[key(r)] = i
	}

	out := make([]entities.TrenchTag, 0, len(last))
	for i, r := range sorted {
		if last[key(r)] != i {
			continue
		}
		out = append(out, entities.TrenchTag{TagID: r.TagID, MB: r.Street, Trench: r.Trench, BatteryStatus: r.BatteryStatus})
	}
	return out
}

// LastSide returns the last side selected on the machine as
// "<first> <last> - Lado: <side>", or an empty string when there is none
func (uc *TagUseCase) LastSide(ctx context.Context, machine entities.Machine) (string, error) {
	remote, log, err := uc.remote(ctx, machine)
	if err != nil {
		return "", err
	}
	defer remote.Close()

	sel, err := remote.Tags.LastSideSelection(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch side selection: %w", err)
	}
	if sel == nil {
		log.Info("No side selection found")
		return "", nil
	}
	return FormatSide(*sel), nil
}

// FormatSide renders a side selection
func FormatSide(sel entities.SideSelection) string {
	return fmt.Sprintf("%s %s - Lado: %s", sel.FirstName, sel.LastName, sel.Side)
}
