package orchestrator

import (
	"context"
	"sync"

	"github.com/opsquad/supervisor/internal/errs"
	"github.com/opsquad/supervisor/internal/rcon/parser"
)

// fetchAll runs the initial parallel player/squad/current-map/next-map fetch
// that Start performs after its settling delay. Individual failures are
// logged but do not abort the others.
func (o *Orchestrator) fetchAll(ctx context.Context) {
	var wg sync.WaitGroup
	fns := []func(context.Context) error{o.fetchPlayers, o.fetchSquads, o.fetchLayerInfo}
	wg.Add(len(fns))
	for _, fn := range fns {
		fn := fn
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				o.log.Warn().Err(err).Msg("initial state fetch failed")
			}
		}()
	}
	wg.Wait()
}

func (o *Orchestrator) fetchPlayers(ctx context.Context) error {
	body, err := o.rc.Execute(ctx, "ListPlayers")
	if err != nil {
		return err
	}
	players, err := parser.ParseListPlayers(body)
	if err != nil {
		return errs.Wrap(errs.KindParseError, err, "orchestrator: parse ListPlayers response")
	}

	mapChanged := o.pendingMapChange.Swap(false)
	o.Players.UpdateFromRCON(players, o.store.IsDisconnected, mapChanged)
	return nil
}

func (o *Orchestrator) fetchSquads(ctx context.Context) error {
	body, err := o.rc.Execute(ctx, "ListSquads")
	if err != nil {
		return err
	}
	squads, err := parser.ParseListSquads(body)
	if err != nil {
		return errs.Wrap(errs.KindParseError, err, "orchestrator: parse ListSquads response")
	}
	o.Squads.UpdateFromRCON(squads)
	return nil
}

func (o *Orchestrator) fetchLayerInfo(ctx context.Context) error {
	currentBody, err := o.rc.Execute(ctx, "ShowCurrentMap")
	if err != nil {
		return err
	}
	current, err := parser.ParseShowCurrentMap(currentBody)
	if err != nil {
		return errs.Wrap(errs.KindParseError, err, "orchestrator: parse ShowCurrentMap response")
	}
	o.Layers.SetCurrent(current)

	nextBody, err := o.rc.Execute(ctx, "ShowNextMap")
	if err != nil {
		return err
	}
	next, err := parser.ParseShowNextMap(nextBody)
	if err != nil {
		return errs.Wrap(errs.KindParseError, err, "orchestrator: parse ShowNextMap response")
	}
	o.Layers.SetNext(next)
	return nil
}
