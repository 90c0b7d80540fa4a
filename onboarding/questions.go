package onboarding

const (
	SubjectMathematics     Subject = "mathematics"
	SubjectPhysics         Subject = "physics"
	SubjectComputerScience Subject = "computer_science"
)

func q(prompt string, correct int, options ...string) Question {
	var opts [OptionsPerQuestion]string
	copy(opts[:], options)
	return Question{Prompt: prompt, Options: opts, Correct: correct}
}

var builtinQuestions = map[Subject][]Question{
	SubjectMathematics: {
		q("What is the derivative of x^2?", 1, "x", "2x", "x^2", "2"),
		q("What is 7 × 8?", 2, "54", "58", "56", "64"),
		q("Which number is prime?", 3, "21", "27", "33", "29"),
		q("What is the value of pi to two decimal places?", 0, "3.14", "3.41", "3.12", "3.16"),
		q("Solve for x: 2x + 6 = 14.", 1, "3", "4", "5", "6"),
		q("What is the sum of interior angles of a triangle?", 2, "90°", "360°", "180°", "270°"),
		q("What is log10(1000)?", 3, "10", "100", "2", "3"),
		q("What is the area of a circle with radius r?", 0, "πr²", "2πr", "πd", "r²"),
		q("What is 15% of 200?", 1, "20", "30", "15", "35"),
		q("What is the integral of 1/x dx?", 2, "x", "1/x²", "ln|x| + C", "e^x + C"),
	},
	SubjectPhysics: {
		q("What is the SI unit of force?", 0, "Newton", "Joule", "Watt", "Pascal"),
		q("What is the approximate speed of light in vacuum?", 3, "3×10^5 m/s", "3×10^6 m/s", "3×10^10 m/s", "3×10^8 m/s"),
		q("Which law states F = ma?", 1, "Newton's first law", "Newton's second law", "Newton's third law", "Hooke's law"),
		q("What is the unit of electrical resistance?", 2, "Volt", "Ampere", "Ohm", "Coulomb"),
		q("Kinetic energy is given by which formula?", 0, "½mv²", "mgh", "mv", "Fd"),
		q("What is the acceleration due to gravity near Earth's surface?", 1, "8.9 m/s²", "9.8 m/s²", "10.8 m/s²", "7.8 m/s²"),
		q("Which particle carries a negative charge?", 3, "Proton", "Neutron", "Photon", "Electron"),
		q("What does a transformer change?", 2, "Frequency", "Power", "Voltage", "Charge"),
		q("What is the unit of frequency?", 0, "Hertz", "Tesla", "Henry", "Farad"),
		q("Momentum is the product of mass and what?", 1, "Acceleration", "Velocity", "Force", "Time"),
	},
	SubjectComputerScience: {
		q("What is the time complexity of binary search?", 2, "O(n)", "O(n log n)", "O(log n)", "O(1)"),
		q("Which data structure is FIFO?", 0, "Queue", "Stack", "Tree", "Heap"),
		q("How many bits are in a byte?", 1, "4", "8", "16", "32"),
		q("Which protocol secures HTTP traffic?", 3, "FTP", "SMTP", "UDP", "TLS"),
		q("What does SQL stand for?", 0, "Structured Query Language", "Simple Query Language", "Sequential Query Logic", "Standard Question Language"),
		q("Which sort has O(n log n) worst-case time?", 2, "Quicksort", "Bubble sort", "Merge sort", "Insertion sort"),
		q("What is the binary representation of 5?", 1, "110", "101", "011", "111"),
		q("Which structure backs a recursive call chain?", 3, "Queue", "Graph", "Hash table", "Call stack"),
		q("What does DNS resolve?", 0, "Names to addresses", "Addresses to MAC", "Ports to services", "Keys to values"),
		q("Which is not a programming paradigm?", 2, "Functional", "Object-oriented", "Relational mapping", "Procedural"),
	},
}
