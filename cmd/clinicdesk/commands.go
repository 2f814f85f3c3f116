package main

import (
	"context"

	"github.com/spf13/pflag"

	"clinicdesk/internal/core"
	"clinicdesk/pkg/domain"
)

type command struct {
	usage string
	// args is the number of positional arguments after the flags.
	args  int
	flags func(*pflag.FlagSet)
	run   func(context.Context, *core.Service, *pflag.FlagSet) (any, error)
}

type deleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

var patientFields = []string{"first-name", "last-name", "dob", "gender", "phone", "email", "address", "allergies", "history"}

var doctorFields = []string{"name", "specialty", "phone", "email"}

var commands = map[string]command{
	"patient add": {
		usage: "patient add --first-name F --last-name L --dob YYYY-MM-DD --gender G --phone P [--email --address --allergies --history]",
		flags: stringFlags(patientFields...),
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			p := patientPatch(fs)
			var patient core.Patient
			if err := p.Apply(&patient); err != nil {
				return nil, err
			}
			return svc.CreatePatient(ctx, patient)
		},
	},
	"patient update": {
		usage: "patient update <id> [--first-name --last-name --dob --gender --phone --email --address --allergies --history]",
		args:  1,
		flags: stringFlags(patientFields...),
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return svc.UpdatePatient(ctx, fs.Arg(0), patientPatch(fs))
		},
	},
	"patient get": {
		usage: "patient get <id>",
		args:  1,
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return found(svc.GetPatient(ctx, fs.Arg(0)))(domain.EntityPatient, fs.Arg(0))
		},
	},
	"patient list": {
		usage: "patient list",
		run: func(ctx context.Context, svc *core.Service, _ *pflag.FlagSet) (any, error) {
			return svc.ListPatients(ctx), nil
		},
	},
	"patient history": {
		usage: "patient history <id>",
		args:  1,
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return svc.ListPatientAppointments(ctx, fs.Arg(0)), nil
		},
	},
	"patient delete": {
		usage: "patient delete <id>",
		args:  1,
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return removed(fs.Arg(0))(svc.DeletePatient(ctx, fs.Arg(0)))
		},
	},

	"doctor add": {
		usage: "doctor add --name N --specialty S --phone P [--email E]",
		flags: stringFlags(doctorFields...),
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			var doctor core.Doctor
			if err := doctorPatch(fs).Apply(&doctor); err != nil {
				return nil, err
			}
			return svc.CreateDoctor(ctx, doctor)
		},
	},
	"doctor update": {
		usage: "doctor update <id> [--name --specialty --phone --email]",
		args:  1,
		flags: stringFlags(doctorFields...),
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return svc.UpdateDoctor(ctx, fs.Arg(0), doctorPatch(fs))
		},
	},
	"doctor get": {
		usage: "doctor get <id>",
		args:  1,
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return found(svc.GetDoctor(ctx, fs.Arg(0)))(domain.EntityDoctor, fs.Arg(0))
		},
	},
	"doctor list": {
		usage: "doctor list",
		run: func(ctx context.Context, svc *core.Service, _ *pflag.FlagSet) (any, error) {
			return svc.ListDoctors(ctx), nil
		},
	},
	"doctor schedule": {
		usage: "doctor schedule <id>",
		args:  1,
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return svc.DoctorSchedule(ctx, fs.Arg(0)), nil
		},
	},
	"doctor profile": {
		usage: "doctor profile <username>",
		args:  1,
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return found(svc.DoctorProfile(ctx, fs.Arg(0)))(domain.EntityDoctor, fs.Arg(0))
		},
	},
	"doctor delete": {
		usage: "doctor delete <id>",
		args:  1,
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return removed(fs.Arg(0))(svc.DeleteDoctor(ctx, fs.Arg(0)))
		},
	},

	"appointment book": {
		usage: "appointment book --patient ID --doctor ID --date YYYY-MM-DD --time HH:MM [--reason R]",
		flags: stringFlags("patient", "doctor", "date", "time", "reason"),
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			appt := core.Appointment{
				PatientID: flagString(fs, "patient"),
				Date:      flagString(fs, "date"),
				Time:      flagString(fs, "time"),
				Reason:    flagString(fs, "reason"),
			}
			if doctor := flagString(fs, "doctor"); doctor != "" {
				appt.DoctorID = &doctor
			}
			return svc.CreateAppointment(ctx, appt)
		},
	},
	"appointment status": {
		usage: "appointment status <id> <Scheduled|Completed|Cancelled>",
		args:  2,
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return svc.UpdateAppointmentStatus(ctx, fs.Arg(0), fs.Arg(1))
		},
	},
	"appointment reschedule": {
		usage: "appointment reschedule <id> [--date YYYY-MM-DD --time HH:MM --reason R]",
		args:  1,
		flags: stringFlags("date", "time", "reason"),
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return svc.UpdateAppointment(ctx, fs.Arg(0), domain.AppointmentPatch{
				Date:   changed(fs, "date"),
				Time:   changed(fs, "time"),
				Reason: changed(fs, "reason"),
			})
		},
	},
	"appointment get": {
		usage: "appointment get <id>",
		args:  1,
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return found(svc.GetAppointment(ctx, fs.Arg(0)))(domain.EntityAppointment, fs.Arg(0))
		},
	},
	"appointment list": {
		usage: "appointment list [--from YYYY-MM-DD --to YYYY-MM-DD --status S --patient ID]",
		flags: stringFlags("from", "to", "status", "patient"),
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return svc.ListAppointments(ctx, core.AppointmentFilter{
				DateFrom:  flagString(fs, "from"),
				DateTo:    flagString(fs, "to"),
				Status:    flagString(fs, "status"),
				PatientID: flagString(fs, "patient"),
			})
		},
	},
	"appointment delete": {
		usage: "appointment delete <id>",
		args:  1,
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return removed(fs.Arg(0))(svc.DeleteAppointment(ctx, fs.Arg(0)))
		},
	},

	"prescription save": {
		usage: "prescription save <appointment-id> [--medications M --instructions I]",
		args:  1,
		flags: stringFlags("medications", "instructions"),
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return svc.UpsertPrescription(ctx, fs.Arg(0), domain.PrescriptionFields{
				Medications:  changed(fs, "medications"),
				Instructions: changed(fs, "instructions"),
			})
		},
	},
	"prescription get": {
		usage: "prescription get <appointment-id>",
		args:  1,
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return found(svc.GetPrescriptionForAppointment(ctx, fs.Arg(0)))(domain.EntityPrescription, fs.Arg(0))
		},
	},
	"prescription delete": {
		usage: "prescription delete <id>",
		args:  1,
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return removed(fs.Arg(0))(svc.DeletePrescription(ctx, fs.Arg(0)))
		},
	},

	"invoice save": {
		usage: "invoice save <appointment-id> [--amount N --item I --status Unpaid|Paid]",
		args:  1,
		flags: func(fs *pflag.FlagSet) {
			fs.Float64("amount", 0, "invoice amount")
			fs.String("item", "", "item description")
			fs.String("status", "", "Unpaid or Paid")
		},
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			fields := domain.InvoiceFields{ItemDescription: changed(fs, "item")}
			if fs.Changed("amount") {
				amount, _ := fs.GetFloat64("amount")
				fields.Amount = &amount
			}
			if raw := changed(fs, "status"); raw != nil {
				status := domain.InvoiceStatus(*raw)
				fields.Status = &status
			}
			return svc.UpsertInvoice(ctx, fs.Arg(0), fields)
		},
	},
	"invoice get": {
		usage: "invoice get <appointment-id>",
		args:  1,
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return found(svc.GetInvoiceForAppointment(ctx, fs.Arg(0)))(domain.EntityInvoice, fs.Arg(0))
		},
	},
	"invoice delete": {
		usage: "invoice delete <id>",
		args:  1,
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return removed(fs.Arg(0))(svc.DeleteInvoice(ctx, fs.Arg(0)))
		},
	},

	"note add": {
		usage: "note add (--patient ID | --appointment ID) --text T [--author NAME]",
		flags: stringFlags("patient", "appointment", "text", "author"),
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			owner, err := noteOwner(fs)
			if err != nil {
				return nil, err
			}
			return svc.AddNote(ctx, owner, flagString(fs, "text"), flagString(fs, "author"))
		},
	},
	"note edit": {
		usage: "note edit <id> --text T",
		args:  1,
		flags: stringFlags("text"),
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return svc.UpdateNote(ctx, fs.Arg(0), domain.NotePatch{Text: changed(fs, "text")})
		},
	},
	"note list": {
		usage: "note list (--patient ID | --appointment ID)",
		flags: stringFlags("patient", "appointment"),
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			owner, err := noteOwner(fs)
			if err != nil {
				return nil, err
			}
			return svc.ListNotes(ctx, owner), nil
		},
	},
	"note delete": {
		usage: "note delete <id>",
		args:  1,
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return removed(fs.Arg(0))(svc.DeleteNote(ctx, fs.Arg(0)))
		},
	},

	"search": {
		usage: "search <query>",
		args:  1,
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return svc.SearchPatientsAndDoctors(ctx, fs.Arg(0)), nil
		},
	},
	"dashboard": {
		usage: "dashboard [--day YYYY-MM-DD]",
		flags: stringFlags("day"),
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			return svc.Dashboard(ctx, flagString(fs, "day"))
		},
	},
	"backup": {
		usage: "backup",
		run: func(ctx context.Context, svc *core.Service, _ *pflag.FlagSet) (any, error) {
			return svc.Backup(ctx)
		},
	},
	"prune-backups": {
		usage: "prune-backups --keep N",
		flags: func(fs *pflag.FlagSet) {
			fs.Int("keep", 10, "number of newest backups to keep")
		},
		run: func(ctx context.Context, svc *core.Service, fs *pflag.FlagSet) (any, error) {
			keep, _ := fs.GetInt("keep")
			return svc.PruneBackups(ctx, keep)
		},
	},
	"backups": {
		usage: "backups",
		run: func(ctx context.Context, svc *core.Service, _ *pflag.FlagSet) (any, error) {
			return svc.Backups(ctx)
		},
	},
}

func stringFlags(names ...string) func(*pflag.FlagSet) {
	return func(fs *pflag.FlagSet) {
		for _, name := range names {
			fs.String(name, "", name)
		}
	}
}

func flagString(fs *pflag.FlagSet, name string) string {
	v, _ := fs.GetString(name)
	return v
}

// changed returns the flag value only when it was set on the command line.
func changed(fs *pflag.FlagSet, name string) *string {
	if !fs.Changed(name) {
		return nil
	}
	v := flagString(fs, name)
	return &v
}

func patientPatch(fs *pflag.FlagSet) domain.PatientPatch {
	return domain.PatientPatch{
		FirstName:   changed(fs, "first-name"),
		LastName:    changed(fs, "last-name"),
		DateOfBirth: changed(fs, "dob"),
		Gender:      changed(fs, "gender"),
		Phone:       changed(fs, "phone"),
		Email:       changed(fs, "email"),
		Address:     changed(fs, "address"),
		Allergies:   changed(fs, "allergies"),
		History:     changed(fs, "history"),
	}
}

func doctorPatch(fs *pflag.FlagSet) domain.DoctorPatch {
	return domain.DoctorPatch{
		Name:      changed(fs, "name"),
		Specialty: changed(fs, "specialty"),
		Phone:     changed(fs, "phone"),
		Email:     changed(fs, "email"),
	}
}

func noteOwner(fs *pflag.FlagSet) (domain.Owner, error) {
	patient, appt := flagString(fs, "patient"), flagString(fs, "appointment")
	switch {
	case patient != "" && appt != "":
		return domain.Owner{}, &domain.ValidationError{Entity: domain.EntityNote, Field: "entity_type", Reason: "set either --patient or --appointment"}
	case patient != "":
		return domain.PatientOwner(patient), nil
	case appt != "":
		return domain.AppointmentOwner(appt), nil
	}
	return domain.Owner{}, domain.Required(domain.EntityNote, "entity_id")
}

// found turns a (record, ok) lookup into a not-found error.
func found(v any, ok bool) func(domain.EntityType, string) (any, error) {
	return func(entity domain.EntityType, id string) (any, error) {
		if !ok {
			return nil, domain.NotFound(entity, id)
		}
		return v, nil
	}
}

func removed(id string) func(bool, error) (any, error) {
	return func(deleted bool, err error) (any, error) {
		if err != nil {
			return nil, err
		}
		return deleteResult{ID: id, Deleted: deleted}, nil
	}
}
