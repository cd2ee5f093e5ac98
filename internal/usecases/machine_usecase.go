package usecases

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/abelzeko/onemine/internal/database"
	"github.com/abelzeko/onemine/internal/entities"
	"github.com/abelzeko/onemine/internal/repository"
	"github.com/abelzeko/onemine/internal/table"
)

// MachineUseCase lists the field machines registered on the local database
type MachineUseCase struct {
	opener repository.Opener
	log    logrus.FieldLogger
}

// NewMachineUseCase creates a new machine use case
func NewMachineUseCase(opener repository.Opener, log logrus.FieldLogger) *MachineUseCase {
	return &MachineUseCase{opener: opener, log: log}
}

// List returns the machines with a usable IP. Spaces are removed from the
// IP, rows without one are dropped and (id, ip) duplicates collapsed.
func (uc *MachineUseCase) List(ctx context.Context) ([]entities.Machine, error) {
	uc.log.Debug("Fetching machines")

	local, err := uc.opener.OpenLocal(ctx)
	if err != nil {
		return nil, err
	}
	defer local.Close()

	machines, err := local.Machines.ListMachines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}

	machines = lo.Map(machines, func(m entities.Machine, _ int) entities.Machine {
		m.IPAddress = database.SanitizeHost(m.IPAddress)
		m.Name = strings.TrimSpace(m.Name)
		return m
	})
	machines = lo.Filter(machines, func(m entities.Machine, _ int) bool { return m.IPAddress != "" })
	machines = lo.UniqBy(machines, func(m entities.Machine) string {
		return strconv.FormatInt(m.ID, 10) + "|" + m.IPAddress
	})

	uc.log.Infof("Successfully fetched %d machines", len(machines))
	return machines, nil
}

// Find returns the machine whose name (case-insensitive) or IP matches nameOrIP
func (uc *MachineUseCase) Find(ctx context.Context, nameOrIP string) (entities.Machine, error) {
	machines, err := uc.List(ctx)
	if err != nil {
		return entities.Machine{}, err
	}
	return FindMachine(machines, nameOrIP)
}

// FindMachine looks nameOrIP up in an already loaded machine list
func FindMachine(machines []entities.Machine, nameOrIP string) (entities.Machine, error) {
	key := strings.TrimSpace(nameOrIP)
	ip := database.SanitizeHost(key)
	m, ok := lo.Find(machines, func(m entities.Machine) bool {
		return strings.EqualFold(m.Name, key) || (ip != "" && m.IPAddress == ip)
	})
	if !ok || key == "" {
		return entities.Machine{}, fmt.Errorf("%w: %q", ErrMachineNotFound, nameOrIP)
	}
	return m, nil
}

// Names returns the machine names in list order
func Names(machines []entities.Machine) []string {
	return lo.Map(machines, func(m entities.Machine, _ int) string { return m.Name })
}

// MachinesTable renders machines with the MachineId, Name, IpAddress columns
func MachinesTable(machines []entities.Machine) *table.Table {
	t := table.New("MachineId", "Name", "IpAddress")
	for _, m := range machines {
		t.Append(strconv.FormatInt(m.ID, 10), m.Name, m.IPAddress)
	}
	return t
}
