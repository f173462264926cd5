// Command spmv benchmarks distributed sparse matrix-vector multiplication
// u = A*v. The matrix nonzeros and the distributions of v and u are read
// from three input files; the multiplication is repeated and timed.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"spmv"
	"spmv/comm"
)

var (
	procs   int
	iters   int
	verbose bool
)

func main() {
	root := &cobra.Command{
		Use:   "spmv [matrix-file] [v-file] [u-file]",
		Short: "distributed sparse matrix-vector multiplication benchmark",
		Long: `spmv multiplies a sparse matrix and a dense vector on p SPMD processes.
The matrix is distributed by an arbitrary two-dimensional nonzero
partitioning and the vectors by arbitrary component-to-processor maps,
all read from input files. File names missing from the command line are
prompted for on standard input.`,
		Args:          cobra.MaximumNArgs(3),
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Flags().IntVar(&procs, "procs", 0, "number of processes (0 takes the count declared in the matrix file)")
	root.Flags().IntVar(&iters, "iters", 1000, "number of multiplications to time")
	root.Flags().BoolVar(&verbose, "verbose", false, "dump the local matrices and plans")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	in := bufio.NewReader(os.Stdin)
	mfile, err := argOrPrompt(in, args, 0, "matrix distribution")
	if err != nil {
		return err
	}
	vfile, err := argOrPrompt(in, args, 1, "v-vector distribution")
	if err != nil {
		return err
	}
	ufile, err := argOrPrompt(in, args, 2, "u-vector distribution")
	if err != nil {
		return err
	}

	p := procs
	if p == 0 {
		if p, err = spmv.PeekMatrixProcs(mfile); err != nil {
			return err
		}
	}

	world := comm.NewWorld(p)
	return world.Run(func(pr *comm.Proc) error {
		return driver(pr, mfile, vfile, ufile)
	})
}

func argOrPrompt(in *bufio.Reader, args []string, i int, what string) (string, error) {
	if i < len(args) {
		return args[i], nil
	}
	fmt.Printf("Please enter the filename of the %s\n", what)
	line, err := in.ReadString('\n')
	if err != nil {
		return "", errors.Wrapf(err, "reading %s filename", what)
	}
	name := strings.TrimSpace(line)
	if name == "" {
		return "", errors.Newf("no %s filename given", what)
	}
	return name, nil
}

// driver is the per-process program: load, convert, build the plan, then
// iterate the kernel and report timings on process 0.
func driver(pr *comm.Proc, mfile, vfile, ufile string) error {
	s := pr.Rank()
	p := pr.Size()

	n, triples, err := spmv.ReadMatrix(pr, mfile)
	if err != nil {
		return err
	}
	A := spmv.TriplesToICRS(n, triples)

	nv, vdist, err := spmv.ReadVecDist(pr, vfile)
	if err != nil {
		return err
	}
	nu, udist, err := spmv.ReadVecDist(pr, ufile)
	if err != nil {
		return err
	}
	if nv != n || nu != n {
		return errors.Newf("vector length disagrees with matrix size: n=%d nv=%d nu=%d", n, nv, nu)
	}

	if verbose {
		A.Print(os.Stdout, s)
	}

	// The input vector is defined by its global indices: v[j] = j+1.
	v := make([]float64, vdist.Len())
	for i, g := range vdist.Index {
		v[i] = float64(g + 1)
	}
	u := make([]float64, udist.Len())

	if s == 0 {
		fmt.Printf("Sparse matrix-vector multiplication using %d processors\n", p)
		fmt.Printf("Initialization for matrix-vector multiplications\n")
	}
	pr.Barrier()
	time0 := pr.WallTime()

	plan, err := spmv.BuildPlan(pr, n, A, vdist, udist)
	if err != nil {
		return err
	}
	if verbose {
		plan.Print(os.Stdout, s)
	}

	if s == 0 {
		fmt.Printf("Start of %d matrix-vector multiplications.\n", iters)
	}
	pr.Barrier()
	time1 := pr.WallTime()

	for iter := 0; iter < iters; iter++ {
		A.Multiply(pr, plan, v, u)
	}
	pr.Barrier()
	time2 := pr.WallTime()

	if s == 0 {
		fmt.Printf("End of matrix-vector multiplications.\n")
		fmt.Printf("Initialization took only %.6f seconds.\n", time1-time0)
		fmt.Printf("Each matvec took only %.6f seconds.\n", (time2-time1)/float64(iters))
		fmt.Printf("Total time for %d iterations: %.6f\n", iters, time2-time1)
	}
	return nil
}
