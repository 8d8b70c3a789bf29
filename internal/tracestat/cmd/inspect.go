package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tracestat/internal/arch"
	"tracestat/internal/classify"
	"tracestat/internal/disasm"
	"tracestat/internal/elfx"
	"tracestat/internal/trace"
	"tracestat/internal/tracestat/log"
	"tracestat/internal/tracestat/styles"
	"tracestat/internal/ui/colorize"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <arch> <trace>",
	Short: "Print decoded records and per-instruction facts",
	Long: `Inspect prints every record of a trace with its decoded instructions and the
facts the classifier derives for each of them. Nothing is aggregated.
Classification failures are shown inline instead of stopping the listing.`,
	Example: `
# First 20 records of an x86-64 trace
tracestat inspect -n 20 x86 boot.trace
  `,
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		log.Setup(debug)

		limit, _ := cmd.Flags().GetInt("limit")
		noColor, _ := cmd.Flags().GetBool("no-color")
		color := !noColor && !colorize.Disabled() && isTerminal(cmd.OutOrStdout())
		if !color {
			styles.Plain()
		}

		opts := inspectOptions{Limit: limit, Color: color}
		if path, _ := cmd.Flags().GetString("elf"); path != "" {
			bias, _ := cmd.Flags().GetUint64("load-bias")
			im, err := elfx.Open(path, bias)
			if err != nil {
				return err
			}
			defer im.Close()
			opts.Image = im
		}

		f, err := trace.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		return runInspect(cmd.OutOrStdout(), f, arch.Parse(args[0]), opts)
	},
}

func init() {
	inspectCmd.Flags().IntP("limit", "n", 0, "Records to print (0 prints all)")
	inspectCmd.Flags().Bool("no-color", false, "Disable colored output")
	inspectCmd.Flags().String("elf", "", "ELF image used to symbolize block addresses")
	inspectCmd.Flags().Uint64("load-bias", 0, "Load address of a position independent --elf image")
	rootCmd.AddCommand(inspectCmd)
}

type inspectOptions struct {
	Limit int // records to print, 0 for all
	Color bool
	Image *elfx.Image
}

func runInspect(w io.Writer, r io.Reader, a arch.Arch, opts inspectOptions) error {
	reader := trace.NewReader(r, a)
	dec := disasm.New(a)
	cls := classify.New(a)

	for n := 0; opts.Limit <= 0 || n < opts.Limit; n++ {
		off := reader.Offset()
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(w, recordHeader(n, off, rec))
		if opts.Image != nil {
			if note := imageNote(opts.Image, rec); note != "" {
				fmt.Fprintln(w, "  "+note)
			}
		}

		insts, err := dec.Decode(rec.PC(), rec.Payload)
		if err != nil {
			fmt.Fprintln(w, "  "+styles.Warning.Render(err.Error()))
		}
		for _, inst := range insts {
			fmt.Fprintln(w, instructionLine(a, inst, cls, rec.IsUser(), opts.Color))
		}
	}
	return nil
}

func recordHeader(n int, off int64, rec trace.Record) string {
	mode := styles.User.Render("user")
	if rec.Kernel {
		mode = styles.Kernel.Render("kernel")
	}
	return fmt.Sprintf("%s %s %s %s count=%d len=%d",
		styles.RecordHeader.Render(fmt.Sprintf("#%d", n)),
		styles.Address.Render(fmt.Sprintf("@%#x", off)),
		styles.RecordHeader.Render(fmt.Sprintf("%#016x", rec.PC())),
		mode, rec.Count, len(rec.Payload))
}

// imageNote names the function holding the block and flags payloads that
// differ from the image bytes.
func imageNote(im *elfx.Image, rec trace.Record) string {
	pc := rec.PC()
	sym := im.Symbolize(pc)
	if sym == "" {
		return ""
	}
	note := styles.Address.Render("<" + sym + ">")
	if b, ok := im.SliceVA(pc, uint64(len(rec.Payload))); ok && !bytes.Equal(b, rec.Payload) {
		note += " " + styles.Warning.Render("payload differs from "+im.Path)
	}
	return note
}

func instructionLine(a arch.Arch, inst disasm.Inst, cls classify.Classifier, user, color bool) string {
	text := inst.Text
	if color {
		text = colorize.MustInstruction(a, text)
	}
	pad := ""
	if n := 40 - len(inst.Text); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	prefix := fmt.Sprintf("  %s  %s%s", styles.Address.Render(fmt.Sprintf("%#x", inst.VA)), text, pad)

	f, err := cls.Classify(inst, user)
	if err != nil {
		return prefix + " " + styles.Warning.Render(err.Error())
	}
	return fmt.Sprintf("%s %s L%d S%d len=%d %s", prefix, styles.Category.Render(f.Category.String()),
		f.Loads, f.Stores, f.Length, f.Mnemonic)
}
