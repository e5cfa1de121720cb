// Package editor implements the runtime configuration editing flow.
//
// A Session owns one runtimeconfig.RuntimeConfiguration on behalf of one
// operator view. Load fetches it from the configuration service, the Set
// methods edit it in place and Save writes the flattened result back.
// Failures are reported once through a notify.Notifier; successful saves
// emit a single info notification.
//
//	s := editor.NewSession(client, notifier)
//	if err := s.Load(ctx); err != nil {
//	    return err
//	}
//	_ = s.SetFlag(runtimeconfig.IncludeCRC, true)
//	_ = s.ApplyAssignment("epcLength=12")
//	return s.Save(ctx)
package editor
